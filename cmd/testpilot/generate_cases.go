package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/testpilot/internal/observability"
)

var generateCasesCmd = &cobra.Command{
	Use:   "generate-cases",
	Short: "Synthesize test cases for an uploaded job",
	Long:  "Synthesize test cases from a job's stored requirements CSV, via the configured provider or the deterministic strategy.",
	RunE:  runGenerateCases,
}

var casesJobID string

func init() {
	generateCasesCmd.Flags().StringVarP(&casesJobID, "job", "j", "", "Job id to synthesize cases for (required)")
	generateCasesCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(generateCasesCmd)
}

func runGenerateCases(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, cfg, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := service.GenerateCases(ctx, casesJobID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Generated %d test cases for %s\n", len(list.TestCases), casesJobID)
	if cfg.Verbose {
		observability.NewPrinter(os.Stdout).PrintCaseList(list)
	}
	return nil
}
