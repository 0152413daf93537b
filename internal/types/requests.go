package types

import (
	"github.com/go-playground/validator/v10"
)

// UploadRequest carries the form fields accompanying an uploaded
// requirements CSV.
type UploadRequest struct {
	Name       string `json:"name" validate:"required,min=1"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// GenerateCasesRequest identifies the job to synthesize cases for.
type GenerateCasesRequest struct {
	JobID string `json:"job_id" validate:"required"`
}

// GenerateScriptsRequest identifies the job to render scripts for.
type GenerateScriptsRequest struct {
	JobID string `json:"job_id" validate:"required"`
	Actor string `json:"actor,omitempty"`
}

// ExecuteRequest triggers a run for a job, optionally restricted to a
// subset of test case ids.
type ExecuteRequest struct {
	JobID       string            `json:"job_id" validate:"required"`
	TriggeredBy string            `json:"triggered_by,omitempty"`
	CaseIDs     []string          `json:"case_ids,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// Validate validates the UploadRequest using the validator.
func (r *UploadRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the GenerateCasesRequest using the validator.
func (r *GenerateCasesRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the GenerateScriptsRequest using the validator.
func (r *GenerateScriptsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ExecuteRequest using the validator.
func (r *ExecuteRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
