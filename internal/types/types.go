// Package types provides type definitions for the records flowing through
// the test automation pipeline.
package types

import "time"

// Job statuses. A job only moves forward; re-running a stage overwrites
// its own output and everything downstream of it.
const (
	JobStatusUploaded         = "uploaded"
	JobStatusCasesGenerated   = "cases_generated"
	JobStatusScriptsGenerated = "scripts_generated"
)

// Run statuses.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusError     = "error"
	RunStatusTimeout   = "timeout"
)

// Result statuses.
const (
	ResultStatusPending = "pending"
	ResultStatusPassed  = "passed"
	ResultStatusFailed  = "failed"
	ResultStatusSkipped = "skipped"
)

// Artifact kinds.
const (
	ArtifactKindScript     = "script"
	ArtifactKindLog        = "log"
	ArtifactKindReport     = "report"
	ArtifactKindScreenshot = "screenshot"
)

// Document is a logical requirements document identified by name. Uploads
// under the same name accumulate immutable versions.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Active     bool      `json:"active"`
}

// Job is one uploaded version of a Document and the unit of pipeline
// work spanning upload through script generation. The stored bytes of a
// job's input file are never modified after upload.
type Job struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Version      int       `json:"version"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	Active       bool      `json:"active"`

	// Input file reference.
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`

	// Stage outputs.
	CasesPath    string   `json:"cases_path,omitempty"`
	CasesCount   int      `json:"cases_count,omitempty"`
	ScriptFiles  []string `json:"script_files,omitempty"`
	ScriptsCount int      `json:"scripts_count,omitempty"`
}

// TestCase is one synthesized test scenario tied to a requirement id.
// Requirement ids are free-form and not guaranteed unique within a job.
type TestCase struct {
	ID            string            `json:"id"`
	JobID         string            `json:"job_id"`
	RequirementID string            `json:"requirement_id"`
	Title         string            `json:"title"`
	Steps         []string          `json:"steps"`
	Expected      string            `json:"expected"`
	Priority      string            `json:"priority"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Active        bool              `json:"active"`
}

// CaseList is the persisted case document for a job, written as a whole
// each time cases are (re)generated.
type CaseList struct {
	JobID       string     `json:"job_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	TestCases   []TestCase `json:"test_cases"`
}

// TestScript is the rendered source for one requirement group.
type TestScript struct {
	JobID         string    `json:"job_id"`
	RequirementID string    `json:"requirement_id"`
	Language      string    `json:"language"`
	Framework     string    `json:"framework"`
	Filename      string    `json:"filename"`
	Code          string    `json:"code"`
	Template      string    `json:"template"`
	GeneratedAt   time.Time `json:"generated_at"`
	GeneratedBy   string    `json:"generated_by,omitempty"`
}

// TestResult is the outcome of one test case within one run. Results are
// created pending when the run is triggered and written back by case
// identity, never positionally.
type TestResult struct {
	ID              string  `json:"id"`
	RunID           string  `json:"run_id"`
	TestCaseID      string  `json:"test_case_id"`
	RequirementID   string  `json:"requirement_id,omitempty"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	LogPath         string  `json:"log_path,omitempty"`
	ScreenshotPath  string  `json:"screenshot_path,omitempty"`
}

// Artifact is a named file reference under a run's artifact directory.
// Artifacts are append-only; re-runs supersede, never edit in place.
type Artifact struct {
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
}

// TestRun is one execution attempt against a job's scripts.
type TestRun struct {
	ID          string            `json:"id"`
	JobID       string            `json:"job_id"`
	TriggeredBy string            `json:"triggered_by,omitempty"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Duration    float64           `json:"duration,omitempty"`
	CaseIDs     []string          `json:"case_ids,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Totals      Totals            `json:"totals"`
	Results     []TestResult      `json:"results,omitempty"`
	Artifacts   []Artifact        `json:"artifacts,omitempty"`
	ReturnCode  int               `json:"return_code,omitempty"`
	Active      bool              `json:"active"`
}

// Totals summarizes pass/fail counts for a run.
type Totals struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Report is the derived, persisted summary of a run. Written once at run
// completion and read-only thereafter.
type Report struct {
	RunID     string          `json:"run_id"`
	JobID     string          `json:"job_id"`
	CreatedAt time.Time       `json:"created_at"`
	Duration  float64         `json:"duration"`
	Status    string          `json:"status"`
	Totals    Totals          `json:"totals"`
	Artifacts ReportArtifacts `json:"artifacts"`
}

// ReportArtifacts points at the raw execution outputs backing a report.
type ReportArtifacts struct {
	JUnitXML string `json:"junit_xml,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// RunSummary is the lightweight listing view of a run; totals are merged
// from the report when one exists, otherwise from run metadata.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Duration  float64   `json:"duration"`
	Totals    Totals    `json:"totals"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
}
