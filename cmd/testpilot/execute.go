package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/testpilot/internal/observability"
	"github.com/jonathan/testpilot/internal/types"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a job's rendered scripts",
	Long:  "Run a job's rendered scripts through the configured test runner (or the simulated runner) and persist the run, artifacts, and report.",
	RunE:  runExecute,
}

var (
	executeJobID   string
	executeTrigger string
	executeCaseIDs []string
)

func init() {
	executeCmd.Flags().StringVarP(&executeJobID, "job", "j", "", "Job id to execute (required)")
	executeCmd.Flags().StringVar(&executeTrigger, "triggered-by", "cli", "Trigger source recorded on the run")
	executeCmd.Flags().StringSliceVar(&executeCaseIDs, "case", nil, "Restrict the run to these test case ids (repeatable)")
	executeCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, cfg, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := service.Execute(ctx, &types.ExecuteRequest{
		JobID:       executeJobID,
		TriggeredBy: executeTrigger,
		CaseIDs:     executeCaseIDs,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Run %s finished with status %s\n", run.ID, run.Status)
	fmt.Fprintf(os.Stdout, "Total: %d  Passed: %d  Failed: %d  Skipped: %d\n",
		run.Totals.Total, run.Totals.Passed, run.Totals.Failed, run.Totals.Skipped)

	if cfg.Verbose {
		observability.NewPrinter(os.Stdout).PrintRun(run)
	}
	return nil
}
