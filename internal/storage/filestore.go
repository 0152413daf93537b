package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonathan/testpilot/internal/types"
)

// FileStore persists every record as one JSON document per id under a
// base directory:
//
//	documents/<docID>.json
//	jobs/<jobID>.json
//	input/<jobID>/<stored filename>
//	codebase/test-cases/<jobID>.json
//	codebase/tests/<jobID>/
//	runs/<runID>/run.json
//	runs/<runID>/artifacts/
//	reports/<runID>.json
type FileStore struct {
	baseDir string
}

// NewFileStore creates the directory layout under baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	s := &FileStore{baseDir: abs}
	for _, d := range []string{
		s.documentsDir(), s.jobsDir(), s.inputDir(), s.casesDir(), s.testsDir(), s.runsDir(), s.reportsDir(),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return s, nil
}

// BaseDir returns the store's root directory.
func (s *FileStore) BaseDir() string { return s.baseDir }

func (s *FileStore) documentsDir() string { return filepath.Join(s.baseDir, "documents") }
func (s *FileStore) jobsDir() string      { return filepath.Join(s.baseDir, "jobs") }
func (s *FileStore) inputDir() string     { return filepath.Join(s.baseDir, "input") }
func (s *FileStore) casesDir() string     { return filepath.Join(s.baseDir, "codebase", "test-cases") }
func (s *FileStore) testsDir() string     { return filepath.Join(s.baseDir, "codebase", "tests") }
func (s *FileStore) runsDir() string      { return filepath.Join(s.baseDir, "runs") }
func (s *FileStore) reportsDir() string   { return filepath.Join(s.baseDir, "reports") }

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// readJSON reads path into v, mapping absence to ErrNotFound.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// SaveDocument persists a document record.
func (s *FileStore) SaveDocument(_ context.Context, doc *types.Document) error {
	return writeJSON(filepath.Join(s.documentsDir(), doc.ID+".json"), doc)
}

// GetDocument loads a document by id.
func (s *FileStore) GetDocument(_ context.Context, id string) (*types.Document, error) {
	var doc types.Document
	if err := readJSON(filepath.Join(s.documentsDir(), id+".json"), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByName finds the active document with the given logical
// name (case sensitive).
func (s *FileStore) GetDocumentByName(ctx context.Context, name string) (*types.Document, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].Name == name {
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("document %q: %w", name, ErrNotFound)
}

// ListDocuments returns active documents sorted by creation time.
func (s *FileStore) ListDocuments(_ context.Context) ([]types.Document, error) {
	entries, err := os.ReadDir(s.documentsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	var docs []types.Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var doc types.Document
		if err := readJSON(filepath.Join(s.documentsDir(), e.Name()), &doc); err != nil {
			continue
		}
		if !doc.Active {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

// SaveJob persists a job record. Last writer wins.
func (s *FileStore) SaveJob(_ context.Context, job *types.Job) error {
	return writeJSON(filepath.Join(s.jobsDir(), job.ID+".json"), job)
}

// GetJob loads a job by id.
func (s *FileStore) GetJob(_ context.Context, id string) (*types.Job, error) {
	var job types.Job
	if err := readJSON(filepath.Join(s.jobsDir(), id+".json"), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListVersions returns the jobs belonging to a document in ascending
// version order.
func (s *FileStore) ListVersions(_ context.Context, documentID string) ([]types.Job, error) {
	entries, err := os.ReadDir(s.jobsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	var jobs []types.Job
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var job types.Job
		if err := readJSON(filepath.Join(s.jobsDir(), e.Name()), &job); err != nil {
			continue
		}
		if job.DocumentID != documentID || !job.Active {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Version < jobs[j].Version })
	return jobs, nil
}

// SaveInputFile stores uploaded bytes under the job's input directory and
// returns the absolute stored path.
func (s *FileStore) SaveInputFile(jobID, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.inputDir(), jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create input directory: %w", err)
	}
	path, err := SafeJoin(dir, SecureFilename(filename))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write input file: %w", err)
	}
	return path, nil
}

// ReadInputFile locates and reads the job's stored CSV (one file per
// job).
func (s *FileStore) ReadInputFile(jobID string) (string, []byte, error) {
	dir := filepath.Join(s.inputDir(), jobID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil, fmt.Errorf("input for job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to list input directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return e.Name(), data, nil
	}
	return "", nil, fmt.Errorf("input for job %s: %w", jobID, ErrNotFound)
}

// SaveCaseList persists the case document for a job, overwriting any
// previous generation.
func (s *FileStore) SaveCaseList(_ context.Context, list *types.CaseList) error {
	return writeJSON(s.CasesPath(list.JobID), list)
}

// LoadCaseList loads the case document for a job.
func (s *FileStore) LoadCaseList(_ context.Context, jobID string) (*types.CaseList, error) {
	var list types.CaseList
	if err := readJSON(s.CasesPath(jobID), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CasesPath returns the path of a job's case document.
func (s *FileStore) CasesPath(jobID string) string {
	return filepath.Join(s.casesDir(), jobID+".json")
}

// WriteScript writes one rendered script file, overwriting in place.
func (s *FileStore) WriteScript(jobID, filename string, code []byte) error {
	dir, err := s.ScriptsDir(jobID)
	if err != nil {
		return err
	}
	path, err := SafeJoin(dir, filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, code, 0o644); err != nil {
		return fmt.Errorf("failed to write script %s: %w", filename, err)
	}
	return nil
}

// ReadScript reads one rendered script file.
func (s *FileStore) ReadScript(jobID, filename string) ([]byte, error) {
	dir, err := s.ScriptsDir(jobID)
	if err != nil {
		return nil, err
	}
	path, err := SafeJoin(dir, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("script %s: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", filename, err)
	}
	return data, nil
}

// ScriptsDir returns (and creates) the job's script directory.
func (s *FileStore) ScriptsDir(jobID string) (string, error) {
	dir := filepath.Join(s.testsDir(), jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scripts directory: %w", err)
	}
	return dir, nil
}

// SaveRun persists the run document. Each call is one committed
// transition.
func (s *FileStore) SaveRun(_ context.Context, run *types.TestRun) error {
	return writeJSON(filepath.Join(s.runsDir(), run.ID, "run.json"), run)
}

// GetRun loads a run by id.
func (s *FileStore) GetRun(_ context.Context, id string) (*types.TestRun, error) {
	var run types.TestRun
	if err := readJSON(filepath.Join(s.runsDir(), id, "run.json"), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRunIDs returns all run ids in lexical order.
func (s *FileStore) ListRunIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.runsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RunArtifactsDir returns (and creates) the run's artifact directory.
func (s *FileStore) RunArtifactsDir(runID string) (string, error) {
	dir := filepath.Join(s.runsDir(), runID, "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	return dir, nil
}

// ArtifactPath resolves an artifact filename inside the run's artifact
// directory, rejecting traversal outside it.
func (s *FileStore) ArtifactPath(runID, filename string) (string, error) {
	dir, err := s.RunArtifactsDir(runID)
	if err != nil {
		return "", err
	}
	return SafeJoin(dir, filename)
}

// SaveReport persists the run's report document. Reports are written
// once; a second write for the same run is ignored.
func (s *FileStore) SaveReport(_ context.Context, report *types.Report) error {
	path := filepath.Join(s.reportsDir(), report.RunID+".json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeJSON(path, report)
}

// LoadReport loads the report for a run.
func (s *FileStore) LoadReport(_ context.Context, runID string) (*types.Report, error) {
	var report types.Report
	if err := readJSON(filepath.Join(s.reportsDir(), runID+".json"), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() {}
