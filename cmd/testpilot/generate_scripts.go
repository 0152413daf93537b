package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/testpilot/internal/observability"
)

var generateScriptsCmd = &cobra.Command{
	Use:   "generate-scripts",
	Short: "Render pytest scripts from a job's test cases",
	Long:  "Render one pytest file per requirement group from a job's generated test cases, plus the shared conftest.",
	RunE:  runGenerateScripts,
}

var (
	scriptsJobID string
	scriptsActor string
)

func init() {
	generateScriptsCmd.Flags().StringVarP(&scriptsJobID, "job", "j", "", "Job id to render scripts for (required)")
	generateScriptsCmd.Flags().StringVar(&scriptsActor, "actor", "", "Actor recorded on the generated scripts")
	generateScriptsCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(generateScriptsCmd)
}

func runGenerateScripts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, cfg, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rendered, err := service.GenerateScripts(ctx, scriptsJobID, scriptsActor)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Rendered %d script files for %s\n", len(rendered), scriptsJobID)
	for _, script := range rendered {
		fmt.Fprintf(os.Stdout, "  %s\n", script.Filename)
	}

	if cfg.Verbose {
		job, err := service.GetJob(ctx, scriptsJobID)
		if err == nil {
			observability.NewPrinter(os.Stdout).PrintScripts(job)
		}
	}
	return nil
}
