package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/types"
)

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func finishedRun(status string, totals types.Totals) *types.TestRun {
	return &types.TestRun{
		ID:        storage.NewRunID(),
		JobID:     storage.NewJobID(),
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Duration:  1.5,
		Totals:    totals,
		Active:    true,
	}
}

func TestBuildReport(t *testing.T) {
	run := finishedRun(types.RunStatusCompleted, types.Totals{Total: 3, Passed: 2, Failed: 1})
	run.Artifacts = []types.Artifact{
		{RunID: run.ID, Kind: types.ArtifactKindLog, Filename: "stdout.txt"},
		{RunID: run.ID, Kind: types.ArtifactKindReport, Filename: "junit.xml"},
	}

	rep := BuildReport(run)
	assert.Equal(t, run.ID, rep.RunID)
	assert.Equal(t, run.JobID, rep.JobID)
	assert.Equal(t, types.RunStatusCompleted, rep.Status)
	assert.Equal(t, run.Totals, rep.Totals)
	assert.Equal(t, "junit.xml", rep.Artifacts.JUnitXML)
	assert.Equal(t, "stdout.txt", rep.Artifacts.Stdout)
}

func TestBuildReport_NoJUnitArtifact(t *testing.T) {
	rep := BuildReport(finishedRun(types.RunStatusError, types.Totals{}))
	assert.Empty(t, rep.Artifacts.JUnitXML)
	assert.Equal(t, "stderr.txt", rep.Artifacts.Stderr)
}

func TestSave_WriteOnce(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	run := finishedRun(types.RunStatusCompleted, types.Totals{Total: 1, Passed: 1})

	first, err := Save(ctx, store, run)
	require.NoError(t, err)
	require.NotNil(t, first)

	run.Status = types.RunStatusFailed
	_, err = Save(ctx, store, run)
	require.NoError(t, err)

	loaded, err := store.LoadReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, loaded.Status)
}

func TestListRuns_NewestFirstAndReportPreferred(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	older := finishedRun(types.RunStatusCompleted, types.Totals{Total: 2, Passed: 2})
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SaveRun(ctx, older))
	_, err := Save(ctx, store, older)
	require.NoError(t, err)

	// Newer run without a report falls back to run metadata.
	newer := finishedRun(types.RunStatusFailed, types.Totals{Total: 2, Passed: 1, Failed: 1})
	require.NoError(t, store.SaveRun(ctx, newer))

	summaries, err := ListRuns(ctx, store)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, newer.ID, summaries[0].RunID)
	assert.Equal(t, 1, summaries[0].Failed)
	assert.Equal(t, older.ID, summaries[1].RunID)
	assert.Equal(t, 2, summaries[1].Passed)
}

func TestListRuns_CorruptReportFallsBackToRunMetadata(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	run := finishedRun(types.RunStatusCompleted, types.Totals{Total: 2, Passed: 2})
	require.NoError(t, store.SaveRun(ctx, run))
	reportPath := filepath.Join(dir, "reports", run.ID+".json")
	require.NoError(t, os.WriteFile(reportPath, []byte("{not json"), 0o644))

	summaries, err := ListRuns(ctx, store)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, run.ID, summaries[0].RunID)
	assert.Equal(t, 2, summaries[0].Passed)
	assert.Equal(t, types.RunStatusCompleted, summaries[0].Status)
}

func TestListRuns_SkipsUnreadableRuns(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	good := finishedRun(types.RunStatusCompleted, types.Totals{Total: 1, Passed: 1})
	require.NoError(t, store.SaveRun(ctx, good))

	// A run directory without a readable record must not fail the listing.
	_, err := store.RunArtifactsDir("run_broken")
	require.NoError(t, err)

	summaries, err := ListRuns(ctx, store)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, good.ID, summaries[0].RunID)
}

func TestListRuns_Empty(t *testing.T) {
	summaries, err := ListRuns(context.Background(), newStore(t))
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
