// Package report derives and serves per-run summaries.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/types"
)

// BuildReport derives the summary record for a finished run. The report
// repeats the run's totals so listings stay serviceable even if the run
// record is later lost.
func BuildReport(run *types.TestRun) *types.Report {
	report := &types.Report{
		RunID:     run.ID,
		JobID:     run.JobID,
		CreatedAt: time.Now().UTC(),
		Duration:  run.Duration,
		Status:    run.Status,
		Totals:    run.Totals,
		Artifacts: types.ReportArtifacts{
			Stdout: "stdout.txt",
			Stderr: "stderr.txt",
		},
	}
	for _, a := range run.Artifacts {
		if a.Kind == types.ArtifactKindReport {
			report.Artifacts.JUnitXML = a.Filename
		}
	}
	return report
}

// Save persists the report for a finished run. Reports are written once;
// backends ignore a second write for the same run.
func Save(ctx context.Context, store storage.Store, run *types.TestRun) (*types.Report, error) {
	r := BuildReport(run)
	if err := store.SaveReport(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save report for %s: %w", run.ID, err)
	}
	return r, nil
}

// ListRuns returns summaries for every readable run, newest first. Runs
// whose records cannot be read are skipped rather than failing the whole
// listing; totals prefer the report and fall back to run metadata when
// the report is missing or unreadable.
func ListRuns(ctx context.Context, store storage.Store) ([]types.RunSummary, error) {
	ids, err := store.ListRunIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]types.RunSummary, 0, len(ids))
	for _, id := range ids {
		run, err := store.GetRun(ctx, id)
		if err != nil {
			continue
		}
		summary := types.RunSummary{
			RunID:     run.ID,
			JobID:     run.JobID,
			Status:    run.Status,
			Timestamp: run.CreatedAt,
			Duration:  run.Duration,
			Totals:    run.Totals,
		}
		// A missing or unreadable report is not fatal; the run stays
		// listed with its own metadata totals.
		if rep, err := store.LoadReport(ctx, id); err == nil {
			summary.Status = rep.Status
			summary.Duration = rep.Duration
			summary.Totals = rep.Totals
		}
		summary.Passed = summary.Totals.Passed
		summary.Failed = summary.Totals.Failed
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}
