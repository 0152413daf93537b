package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/testpilot/internal/config"
	"github.com/jonathan/testpilot/internal/llm"
	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/types"
	"github.com/jonathan/testpilot/internal/validation"
)

const twoRowCSV = "requirement_id,title,description,priority\n" +
	"REQ-1,Login,User can log in with valid credentials,High\n" +
	"REQ-2,Logout,User can log out from the dashboard,Low\n"

func newTestService(t *testing.T) (*Service, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	cfg := config.Config{
		MockGeneration: true,
		MockExecution:  true,
		Runner:         "pytest",
		TimeoutSeconds: 300,
	}
	return NewService(store, llm.NewMockClient(), cfg), store
}

func TestUpload_FirstVersion(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	result, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Job.Version)
	assert.Equal(t, types.JobStatusUploaded, result.Job.Status)
	assert.Equal(t, "checkout", result.Job.DocumentName)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, storage.ChecksumBytes([]byte(twoRowCSV)), result.Job.Checksum)
}

func TestUpload_SameNameIncrementsVersion(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)
	second, err := service.Upload(ctx, "checkout", "reqs-v2.csv", []byte(twoRowCSV))
	require.NoError(t, err)

	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, 2, second.Job.Version)
	assert.NotEqual(t, first.Job.ID, second.Job.ID)

	versions, err := service.ListVersions(ctx, "checkout")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	// The first version's stored bytes survive the second upload.
	_, data, err := service.Store().ReadInputFile(first.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, twoRowCSV, string(data))
}

func TestUpload_MissingColumnsPersistsNothing(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Upload(ctx, "broken", "reqs.csv", []byte("requirement_id,description\nREQ-1,x\n"))
	require.Error(t, err)

	var vErr *ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	var colErr *validation.MissingColumnsError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, []string{"title", "priority"}, colErr.Columns)

	docs, err := service.Store().ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpload_EmptyRequiredCellsPersistNothing(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	csv := "requirement_id,title,description,priority\nREQ-1,,Desc,High\n"
	_, err := service.Upload(ctx, "invalid", "reqs.csv", []byte(csv))
	require.Error(t, err)

	var vErr *ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	require.NotNil(t, vErr.Result)
	require.Len(t, vErr.Result.Errors, 1)
	assert.Equal(t, 2, vErr.Result.Errors[0].Line)
	assert.Equal(t, "title", vErr.Result.Errors[0].Column)

	docs, err := service.Store().ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestGenerateCases_UnknownJob(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.GenerateCases(context.Background(), "job_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGenerateScripts_RequiresCases(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)

	_, err = service.GenerateScripts(ctx, uploaded.Job.ID, "")
	var precondErr *PreconditionError
	require.ErrorAs(t, err, &precondErr)
	assert.Equal(t, "generated cases", precondErr.MissingStage)
}

func TestExecute_RequiresScripts(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)
	_, err = service.GenerateCases(ctx, uploaded.Job.ID)
	require.NoError(t, err)

	_, err = service.Execute(ctx, &types.ExecuteRequest{JobID: uploaded.Job.ID})
	var precondErr *PreconditionError
	require.ErrorAs(t, err, &precondErr)
	assert.Equal(t, "generated scripts", precondErr.MissingStage)
}

func TestEndToEnd_MockPipeline(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)
	jobID := uploaded.Job.ID

	list, err := service.GenerateCases(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, list.TestCases, 2)
	assert.Equal(t, "REQ-1", list.TestCases[0].RequirementID)
	assert.Equal(t, "REQ-2", list.TestCases[1].RequirementID)

	job, err := service.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCasesGenerated, job.Status)
	assert.Equal(t, 2, job.CasesCount)

	rendered, err := service.GenerateScripts(ctx, jobID, "tester")
	require.NoError(t, err)
	require.Len(t, rendered, 2)
	assert.Equal(t, "test_req_1.py", rendered[0].Filename)
	assert.Equal(t, "test_req_2.py", rendered[1].Filename)

	scriptsDir, err := store.ScriptsDir(jobID)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(scriptsDir, "conftest.py"))
	assert.FileExists(t, filepath.Join(scriptsDir, "test_req_1.py"))
	assert.FileExists(t, filepath.Join(scriptsDir, "test_req_2.py"))

	run, err := service.Execute(ctx, &types.ExecuteRequest{JobID: jobID, TriggeredBy: "test"})
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Equal(t, types.Totals{Total: 2, Passed: 2}, run.Totals)

	require.Len(t, run.Results, 2)
	assert.Equal(t, types.ResultStatusPassed, run.Results[0].Status)
	assert.Less(t, run.Results[0].DurationSeconds, run.Results[1].DurationSeconds)

	rep, err := service.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, rep.Status)
	assert.Equal(t, 2, rep.Totals.Passed)

	summaries, err := service.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, run.ID, summaries[0].RunID)
	assert.Equal(t, 2, summaries[0].Passed)
}

func TestGenerateScripts_RegenerationOverwritesInPlace(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)
	_, err = service.GenerateCases(ctx, uploaded.Job.ID)
	require.NoError(t, err)

	first, err := service.GenerateScripts(ctx, uploaded.Job.ID, "")
	require.NoError(t, err)
	second, err := service.GenerateScripts(ctx, uploaded.Job.ID, "")
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))

	scriptsDir, err := store.ScriptsDir(uploaded.Job.ID)
	require.NoError(t, err)
	entries, err := os.ReadDir(scriptsDir)
	require.NoError(t, err)
	// conftest plus one file per requirement group, no duplicates.
	assert.Len(t, entries, 3)
}

func TestExecute_CaseSubset(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)
	list, err := service.GenerateCases(ctx, uploaded.Job.ID)
	require.NoError(t, err)
	_, err = service.GenerateScripts(ctx, uploaded.Job.ID, "")
	require.NoError(t, err)

	run, err := service.Execute(ctx, &types.ExecuteRequest{
		JobID:   uploaded.Job.ID,
		CaseIDs: []string{list.TestCases[1].ID},
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.Equal(t, list.TestCases[1].ID, run.Results[0].TestCaseID)
}

func TestExecute_UnknownCaseIDsFallBackToAll(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "checkout", "reqs.csv", []byte(twoRowCSV))
	require.NoError(t, err)
	_, err = service.GenerateCases(ctx, uploaded.Job.ID)
	require.NoError(t, err)
	_, err = service.GenerateScripts(ctx, uploaded.Job.ID, "")
	require.NoError(t, err)

	run, err := service.Execute(ctx, &types.ExecuteRequest{
		JobID:   uploaded.Job.ID,
		CaseIDs: []string{"tc_does_not_exist"},
	})
	require.NoError(t, err)
	assert.Len(t, run.Results, 2)
}
