// Package export produces downloadable renditions of pipeline outputs:
// a CSV of a run's results and a zip bundle of a job's scripts.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/types"
)

// resultColumns is the fixed header of an exported results CSV.
var resultColumns = []string{"test_result_id", "test_case_id", "status", "duration_seconds", "error_message"}

// ResultsCSV renders a run's results as CSV, one row per result in run
// order. Quoting follows the csv writer; commas, quotes, and newlines in
// error messages survive a round trip.
func ResultsCSV(run *types.TestRun) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(resultColumns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range run.Results {
		record := []string{
			r.ID,
			r.TestCaseID,
			r.Status,
			strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64),
			r.ErrorMessage,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ScriptsZip bundles every .py file in a job's script directory into a
// zip archive with flat entry names. A job with no rendered scripts is a
// not-found condition, not an empty archive.
func ScriptsZip(ctx context.Context, store storage.Store, jobID string) ([]byte, error) {
	dir, err := store.ScriptsDir(jobID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("no scripts for job %s: %w", jobID, storage.ErrNotFound)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no scripts for job %s: %w", jobID, storage.ErrNotFound)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read script %s: %w", name, err)
		}
		f, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
