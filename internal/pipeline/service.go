// Package pipeline wires storage, generation, and execution into the four
// stage operations: upload, case generation, script generation, execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/testpilot/internal/cases"
	"github.com/jonathan/testpilot/internal/config"
	"github.com/jonathan/testpilot/internal/execution"
	"github.com/jonathan/testpilot/internal/llm"
	"github.com/jonathan/testpilot/internal/report"
	"github.com/jonathan/testpilot/internal/scripts"
	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/types"
	"github.com/jonathan/testpilot/internal/validation"
)

// PreconditionError indicates a stage was invoked before the stage it
// depends on produced output.
type PreconditionError struct {
	JobID        string
	MissingStage string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("job %s has no %s output yet", e.JobID, e.MissingStage)
}

// ValidationFailedError carries the row/column findings of a rejected
// upload.
type ValidationFailedError struct {
	Result *validation.Result
	Cause  error
}

func (e *ValidationFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("requirements file rejected: %v", e.Cause)
	}
	if e.Result != nil && len(e.Result.Errors) > 0 {
		return fmt.Sprintf("requirements file rejected: %d field errors", len(e.Result.Errors))
	}
	return "requirements file rejected"
}

func (e *ValidationFailedError) Unwrap() error { return e.Cause }

// Service exposes the pipeline stages over a storage backend. One Service
// handles any number of jobs; per-job stage calls are expected to be
// serialized by the caller.
type Service struct {
	store  storage.Store
	client llm.Client
	cfg    config.Config
}

// NewService creates a pipeline service.
func NewService(store storage.Store, client llm.Client, cfg config.Config) *Service {
	return &Service{store: store, client: client, cfg: cfg}
}

// Store exposes the underlying storage backend for read paths that have
// no stage semantics (reports, artifacts, exports).
func (s *Service) Store() storage.Store { return s.store }

// UploadResult is the outcome of an accepted upload.
type UploadResult struct {
	Job      *types.Job      `json:"job"`
	Document *types.Document `json:"document"`
	Rows     int             `json:"rows"`
}

// Upload validates fileBytes as a requirements CSV and, if the document
// is valid, stores it immutably as the next version of the named
// document. An invalid document (structural problem or empty required
// cells) is rejected with the full list of findings; nothing is
// persisted for it.
func (s *Service) Upload(ctx context.Context, name, filename string, fileBytes []byte) (*UploadResult, error) {
	result, err := validation.ValidateCSV(fileBytes)
	if err != nil {
		return nil, &ValidationFailedError{Result: result, Cause: err}
	}
	if !result.Valid {
		return nil, &ValidationFailedError{Result: result}
	}

	doc, err := s.store.GetDocumentByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		doc = &types.Document{
			ID:        storage.NewDocumentID(),
			Name:      name,
			CreatedAt: time.Now().UTC(),
			Active:    true,
		}
		if err := s.store.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to save document: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up document %q: %w", name, err)
	}

	versions, err := s.store.ListVersions(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", doc.ID, err)
	}
	version := 1
	if n := len(versions); n > 0 {
		version = versions[n-1].Version + 1
	}

	job := &types.Job{
		ID:           storage.NewJobID(),
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Version:      version,
		Status:       types.JobStatusUploaded,
		CreatedAt:    time.Now().UTC(),
		Active:       true,
		Checksum:     storage.ChecksumBytes(fileBytes),
	}
	stored, err := s.store.SaveInputFile(job.ID, filename, fileBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store input file: %w", err)
	}
	job.Filename = stored

	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	return &UploadResult{Job: job, Document: doc, Rows: len(result.Rows)}, nil
}

// GenerateCases synthesizes the case list for a job from its stored input
// file. Re-invocation overwrites the previous case list in full.
func (s *Service) GenerateCases(ctx context.Context, jobID string) (*types.CaseList, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	_, data, err := s.store.ReadInputFile(job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read input for %s: %w", job.ID, err)
	}
	result, err := validation.ValidateCSV(data)
	if err != nil {
		return nil, fmt.Errorf("stored input for %s unreadable: %w", job.ID, err)
	}

	synth := cases.NewSynthesizer(s.client, s.cfg.MockGeneration, s.cfg.Model)
	list := &types.CaseList{
		JobID:       job.ID,
		GeneratedAt: time.Now().UTC(),
		TestCases:   synth.Synthesize(ctx, job.ID, result.Rows),
	}
	if err := s.store.SaveCaseList(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to save case list: %w", err)
	}

	job.Status = types.JobStatusCasesGenerated
	job.CasesPath = s.store.CasesPath(job.ID)
	job.CasesCount = len(list.TestCases)
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return list, nil
}

// GenerateScripts renders one pytest file per requirement group from a
// job's case list, plus the shared conftest. Regeneration rewrites files
// in place because filenames are a pure function of requirement ids.
func (s *Service) GenerateScripts(ctx context.Context, jobID, actor string) ([]types.TestScript, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.LoadCaseList(ctx, job.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &PreconditionError{JobID: job.ID, MissingStage: "generated cases"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case list for %s: %w", job.ID, err)
	}

	if err := s.store.WriteScript(job.ID, scripts.ConftestFilename, []byte(scripts.Conftest)); err != nil {
		return nil, fmt.Errorf("failed to write conftest: %w", err)
	}

	groups := scripts.GroupByRequirement(list.TestCases)
	rendered := make([]types.TestScript, 0, len(groups))
	files := make([]string, 0, len(groups))
	for _, group := range groups {
		code, err := scripts.RenderGroup(group)
		if err != nil {
			return nil, err
		}
		filename := scripts.FileName(group.RequirementID)
		if err := s.store.WriteScript(job.ID, filename, []byte(code)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filename, err)
		}
		rendered = append(rendered, types.TestScript{
			JobID:         job.ID,
			RequirementID: group.RequirementID,
			Language:      scripts.Language,
			Framework:     scripts.Framework,
			Filename:      filename,
			Code:          code,
			Template:      scripts.Template,
			GeneratedAt:   time.Now().UTC(),
			GeneratedBy:   actor,
		})
		files = append(files, filename)
	}

	job.Status = types.JobStatusScriptsGenerated
	job.ScriptFiles = files
	job.ScriptsCount = len(files)
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return rendered, nil
}

// Execute runs a job's rendered scripts through the orchestrator and
// persists the run, its artifacts, and the derived report. The returned
// run is terminal; environment failures are encoded in its status.
func (s *Service) Execute(ctx context.Context, req *types.ExecuteRequest) (*types.TestRun, error) {
	job, err := s.store.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.JobStatusScriptsGenerated {
		return nil, &PreconditionError{JobID: job.ID, MissingStage: "generated scripts"}
	}
	list, err := s.store.LoadCaseList(ctx, job.ID)
	if err != nil {
		return nil, &PreconditionError{JobID: job.ID, MissingStage: "generated cases"}
	}

	selected := selectCases(list.TestCases, req.CaseIDs)
	run := &types.TestRun{
		ID:          storage.NewRunID(),
		JobID:       job.ID,
		TriggeredBy: req.TriggeredBy,
		Status:      types.RunStatusQueued,
		CreatedAt:   time.Now().UTC(),
		CaseIDs:     req.CaseIDs,
		Params:      req.Params,
		Active:      true,
	}
	for i, c := range selected {
		run.Results = append(run.Results, types.TestResult{
			ID:            fmt.Sprintf("%s_result_%d", run.ID, i+1),
			RunID:         run.ID,
			TestCaseID:    c.ID,
			RequirementID: c.RequirementID,
			Status:        types.ResultStatusPending,
		})
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	scriptsDir, err := s.store.ScriptsDir(job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scripts dir: %w", err)
	}

	orch := execution.NewOrchestrator(s.store, execution.Options{
		Mock:    s.cfg.MockExecution,
		Runner:  s.cfg.Runner,
		Timeout: s.cfg.Timeout(),
	})
	if err := orch.Run(ctx, run, scriptsDir); err != nil {
		return nil, err
	}

	if _, err := report.Save(ctx, s.store, run); err != nil {
		log.Printf("report for %s not persisted: %v", run.ID, err)
	}
	return run, nil
}

// GetJob returns a job record.
func (s *Service) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// GetRun returns a run record.
func (s *Service) GetRun(ctx context.Context, runID string) (*types.TestRun, error) {
	return s.store.GetRun(ctx, runID)
}

// GetCaseList returns a job's generated case list.
func (s *Service) GetCaseList(ctx context.Context, jobID string) (*types.CaseList, error) {
	return s.store.LoadCaseList(ctx, jobID)
}

// ListRuns returns summaries for all runs, newest first.
func (s *Service) ListRuns(ctx context.Context) ([]types.RunSummary, error) {
	return report.ListRuns(ctx, s.store)
}

// GetReport returns the persisted report for a run.
func (s *Service) GetReport(ctx context.Context, runID string) (*types.Report, error) {
	return s.store.LoadReport(ctx, runID)
}

// ListVersions returns the jobs of a named document in ascending version
// order.
func (s *Service) ListVersions(ctx context.Context, name string) ([]types.Job, error) {
	doc, err := s.store.GetDocumentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, doc.ID)
}

// selectCases filters cases by id, falling back to the whole list when no
// ids are named or none match.
func selectCases(all []types.TestCase, ids []string) []types.TestCase {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var selected []types.TestCase
	for _, c := range all {
		if want[c.ID] {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return all
	}
	return selected
}
