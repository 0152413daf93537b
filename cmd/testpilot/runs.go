package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs, newest first",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, _, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summaries, err := service.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded")
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintf(os.Stdout, "%s  %-9s  %s  passed=%d failed=%d skipped=%d  %.2fs\n",
			s.Timestamp.Format("2006-01-02 15:04:05"), s.Status, s.RunID,
			s.Totals.Passed, s.Totals.Failed, s.Totals.Skipped, s.Duration)
	}
	return nil
}
