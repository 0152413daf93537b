package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadRequest_Validate(t *testing.T) {
	assert.Error(t, (&UploadRequest{}).Validate())
	assert.NoError(t, (&UploadRequest{Name: "checkout"}).Validate())
}

func TestGenerateCasesRequest_Validate(t *testing.T) {
	assert.Error(t, (&GenerateCasesRequest{}).Validate())
	assert.NoError(t, (&GenerateCasesRequest{JobID: "job_1"}).Validate())
}

func TestGenerateScriptsRequest_Validate(t *testing.T) {
	assert.Error(t, (&GenerateScriptsRequest{Actor: "someone"}).Validate())
	assert.NoError(t, (&GenerateScriptsRequest{JobID: "job_1"}).Validate())
}

func TestExecuteRequest_Validate(t *testing.T) {
	assert.Error(t, (&ExecuteRequest{TriggeredBy: "api"}).Validate())
	assert.NoError(t, (&ExecuteRequest{JobID: "job_1", CaseIDs: []string{"tc_1"}}).Validate())
}
