// Package storage provides persistence for jobs, runs, reports, and
// their file artifacts. A single Store interface fronts two backends:
// FileStore keeps every record as a JSON document on disk, PGStore keeps
// records in PostgreSQL while blobs stay on disk.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/testpilot/internal/types"
)

// ErrNotFound is returned (wrapped) when a document, job, run, report, or
// artifact does not exist.
var ErrNotFound = errors.New("not found")

// Store is the content store underlying every pipeline stage. Writes to a
// given job or run are last-writer-wins; callers serialize concurrent
// stage invocations against the same id.
type Store interface {
	// Documents and versions.
	SaveDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	GetDocumentByName(ctx context.Context, name string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]types.Document, error)

	// Jobs. ListVersions returns a document's jobs in ascending version
	// order.
	SaveJob(ctx context.Context, job *types.Job) error
	GetJob(ctx context.Context, id string) (*types.Job, error)
	ListVersions(ctx context.Context, documentID string) ([]types.Job, error)

	// Uploaded input bytes. Stored files are immutable: re-uploading a
	// document name creates a new job with its own file.
	SaveInputFile(jobID, filename string, data []byte) (string, error)
	ReadInputFile(jobID string) (string, []byte, error)

	// Generated case lists, one JSON document per job.
	SaveCaseList(ctx context.Context, list *types.CaseList) error
	LoadCaseList(ctx context.Context, jobID string) (*types.CaseList, error)
	CasesPath(jobID string) string

	// Rendered scripts. ScriptsDir is a real directory so the external
	// runner can execute from it in both backends.
	WriteScript(jobID, filename string, code []byte) error
	ReadScript(jobID, filename string) ([]byte, error)
	ScriptsDir(jobID string) (string, error)

	// Runs. Each SaveRun is one committed transition; a crash between
	// transitions leaves the run in the last committed status.
	SaveRun(ctx context.Context, run *types.TestRun) error
	GetRun(ctx context.Context, id string) (*types.TestRun, error)
	ListRunIDs(ctx context.Context) ([]string, error)

	// Per-run artifact files. ArtifactPath rejects names resolving
	// outside the run's artifact directory.
	RunArtifactsDir(runID string) (string, error)
	ArtifactPath(runID, filename string) (string, error)

	// Reports, immutable once written.
	SaveReport(ctx context.Context, report *types.Report) error
	LoadReport(ctx context.Context, runID string) (*types.Report, error)

	Close()
}

// NewJobID returns a fresh job identifier.
func NewJobID() string {
	return "job_" + uuid.NewString()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.NewString()
}

// NewDocumentID returns a fresh document identifier.
func NewDocumentID() string {
	return "doc_" + uuid.NewString()
}

// ChecksumBytes returns the hex sha256 of data.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SecureFilename reduces a logical name to a safe stored filename.
// Alphanumerics and `-_.() ` survive; whitespace collapses to `_`.
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_.() ", r) {
			b.WriteRune(r)
		}
	}
	sanitized := strings.Join(strings.Fields(b.String()), "_")
	if sanitized == "" {
		return fmt.Sprintf("file_%d", time.Now().Unix())
	}
	return sanitized
}

// SafeJoin joins dir and filename, rejecting any name whose resolved
// absolute path is not the directory itself or a descendant of it.
func SafeJoin(dir, filename string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(absDir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if path != absDir && !strings.HasPrefix(path, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path %q: %w", filename, ErrNotFound)
	}
	return path, nil
}
