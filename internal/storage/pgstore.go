package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/testpilot/internal/types"
)

// Schema is the relational layout backing PGStore. Run/report rows hold
// their structured payloads as JSONB so both backends persist the same
// shapes.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    uploaded_by TEXT,
    notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id),
    payload JSONB NOT NULL,
    version INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS case_lists (
    job_id TEXT PRIMARY KEY REFERENCES jobs(id),
    payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    status TEXT NOT NULL,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS reports (
    run_id TEXT PRIMARY KEY,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PGStore keeps records in PostgreSQL and delegates file blobs (uploaded
// inputs, rendered scripts, run artifacts) to an embedded FileStore so
// the external runner still has a real directory to execute from.
type PGStore struct {
	pool  *pgxpool.Pool
	files *FileStore
}

// NewPGStore connects to the database, ensures the schema, and prepares
// the blob directory layout under baseDir.
func NewPGStore(ctx context.Context, databaseURL, baseDir string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	files, err := NewFileStore(baseDir)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PGStore{pool: pool, files: files}, nil
}

// SaveDocument upserts a document row.
func (s *PGStore) SaveDocument(ctx context.Context, doc *types.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, uploaded_by, notes, created_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = $2, uploaded_by = $3, notes = $4, active = $6`,
		doc.ID, doc.Name, doc.UploadedBy, doc.Notes, doc.CreatedAt, doc.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument loads a document by id.
func (s *PGStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(uploaded_by, ''), COALESCE(notes, ''), created_at, active
		 FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Name, &doc.UploadedBy, &doc.Notes, &doc.CreatedAt, &doc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// GetDocumentByName finds the active document with the given name.
func (s *PGStore) GetDocumentByName(ctx context.Context, name string) (*types.Document, error) {
	var doc types.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(uploaded_by, ''), COALESCE(notes, ''), created_at, active
		 FROM documents WHERE name = $1 AND active ORDER BY created_at LIMIT 1`, name,
	).Scan(&doc.ID, &doc.Name, &doc.UploadedBy, &doc.Notes, &doc.CreatedAt, &doc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document by name: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns active documents ordered by creation time.
func (s *PGStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(uploaded_by, ''), COALESCE(notes, ''), created_at, active
		 FROM documents WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.UploadedBy, &doc.Notes, &doc.CreatedAt, &doc.Active); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveJob upserts the full job payload.
func (s *PGStore) SaveJob(ctx context.Context, job *types.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, document_id, payload, version, created_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET payload = $3, active = $6`,
		job.ID, job.DocumentID, payload, job.Version, job.CreatedAt, job.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob loads a job by id.
func (s *PGStore) GetJob(ctx context.Context, id string) (*types.Job, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM jobs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job types.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job payload: %w", err)
	}
	return &job, nil
}

// ListVersions returns a document's jobs in ascending version order.
func (s *PGStore) ListVersions(ctx context.Context, documentID string) ([]types.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM jobs WHERE document_id = $1 AND active ORDER BY version`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		var job types.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, fmt.Errorf("failed to parse job payload: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SaveInputFile stores uploaded bytes on disk.
func (s *PGStore) SaveInputFile(jobID, filename string, data []byte) (string, error) {
	return s.files.SaveInputFile(jobID, filename, data)
}

// ReadInputFile reads the job's stored input file.
func (s *PGStore) ReadInputFile(jobID string) (string, []byte, error) {
	return s.files.ReadInputFile(jobID)
}

// SaveCaseList upserts the job's case document and mirrors it to disk so
// the cases path stays meaningful.
func (s *PGStore) SaveCaseList(ctx context.Context, list *types.CaseList) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal case list: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO case_lists (job_id, payload) VALUES ($1, $2)
		 ON CONFLICT (job_id) DO UPDATE SET payload = $2`,
		list.JobID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save case list: %w", err)
	}
	return s.files.SaveCaseList(ctx, list)
}

// LoadCaseList loads the case document for a job.
func (s *PGStore) LoadCaseList(ctx context.Context, jobID string) (*types.CaseList, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM case_lists WHERE job_id = $1`, jobID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cases for job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case list: %w", err)
	}
	var list types.CaseList
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("failed to parse case list: %w", err)
	}
	return &list, nil
}

// CasesPath returns the on-disk path of a job's case document.
func (s *PGStore) CasesPath(jobID string) string {
	return s.files.CasesPath(jobID)
}

// WriteScript writes one rendered script file on disk.
func (s *PGStore) WriteScript(jobID, filename string, code []byte) error {
	return s.files.WriteScript(jobID, filename, code)
}

// ReadScript reads one rendered script file.
func (s *PGStore) ReadScript(jobID, filename string) ([]byte, error) {
	return s.files.ReadScript(jobID, filename)
}

// ScriptsDir returns the job's script directory.
func (s *PGStore) ScriptsDir(jobID string) (string, error) {
	return s.files.ScriptsDir(jobID)
}

// SaveRun upserts the run row; one call per committed transition.
func (s *PGStore) SaveRun(ctx context.Context, run *types.TestRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, job_id, status, payload, created_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = $3, payload = $4, active = $6`,
		run.ID, run.JobID, run.Status, payload, run.CreatedAt, run.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *PGStore) GetRun(ctx context.Context, id string) (*types.TestRun, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM runs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	var run types.TestRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run payload: %w", err)
	}
	return &run, nil
}

// ListRunIDs returns all run ids in creation order.
func (s *PGStore) ListRunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RunArtifactsDir returns the run's on-disk artifact directory.
func (s *PGStore) RunArtifactsDir(runID string) (string, error) {
	return s.files.RunArtifactsDir(runID)
}

// ArtifactPath resolves an artifact filename inside the run's artifact
// directory.
func (s *PGStore) ArtifactPath(runID, filename string) (string, error) {
	return s.files.ArtifactPath(runID, filename)
}

// SaveReport inserts the run's report row. Reports are written once.
func (s *PGStore) SaveReport(ctx context.Context, report *types.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (run_id, payload) VALUES ($1, $2)
		 ON CONFLICT (run_id) DO NOTHING`,
		report.RunID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// LoadReport loads the report for a run.
func (s *PGStore) LoadReport(ctx context.Context, runID string) (*types.Report, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM reports WHERE run_id = $1`, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("report for run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	var report types.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report payload: %w", err)
	}
	return &report, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
