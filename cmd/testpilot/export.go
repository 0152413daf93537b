package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/testpilot/internal/export"
)

var exportResultsCmd = &cobra.Command{
	Use:   "export-results",
	Short: "Export a run's results as CSV",
	RunE:  runExportResults,
}

var exportScriptsCmd = &cobra.Command{
	Use:   "export-scripts",
	Short: "Export a job's rendered scripts as a zip archive",
	RunE:  runExportScripts,
}

var (
	exportRunID  string
	exportJobID  string
	exportOutput string
)

func init() {
	exportResultsCmd.Flags().StringVarP(&exportRunID, "run", "r", "", "Run id to export (required)")
	exportResultsCmd.Flags().StringVarP(&exportOutput, "out", "o", "", "Output file (defaults to stdout for CSV)")
	exportResultsCmd.MarkFlagRequired("run")

	exportScriptsCmd.Flags().StringVarP(&exportJobID, "job", "j", "", "Job id to export (required)")
	exportScriptsCmd.Flags().StringVarP(&exportOutput, "out", "o", "", "Output file (required for zip)")
	exportScriptsCmd.MarkFlagRequired("job")
	exportScriptsCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportResultsCmd)
	rootCmd.AddCommand(exportScriptsCmd)
}

func runExportResults(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, _, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := service.GetRun(ctx, exportRunID)
	if err != nil {
		return err
	}
	data, err := export.ResultsCSV(run)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", exportOutput)
	return nil
}

func runExportScripts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, _, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := export.ScriptsZip(ctx, service.Store(), exportJobID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", exportOutput)
	return nil
}
