package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/testpilot/internal/observability"
	"github.com/jonathan/testpilot/internal/pipeline"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a requirements CSV as a new document version",
	Long:  "Validate a requirements CSV and store it immutably as the next version of the named document.",
	RunE:  runUpload,
}

var (
	uploadFile string
	uploadName string
	uploadedBy string
)

func init() {
	uploadCmd.Flags().StringVarP(&uploadFile, "file", "f", "", "Path to the requirements CSV (required)")
	uploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "Logical document name (required)")
	uploadCmd.Flags().StringVar(&uploadedBy, "uploaded-by", "", "Uploader identity recorded on the document")

	uploadCmd.MarkFlagRequired("file")
	uploadCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	service, cfg, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := os.ReadFile(uploadFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", uploadFile, err)
	}

	result, err := service.Upload(ctx, uploadName, filepath.Base(uploadFile), data)
	if err != nil {
		var vErr *pipeline.ValidationFailedError
		if errors.As(err, &vErr) && vErr.Result != nil && cfg.Verbose {
			observability.NewPrinter(os.Stdout).PrintValidation(vErr.Result)
		}
		return err
	}

	fmt.Fprintf(os.Stdout, "Uploaded %s as version %d of %q\n", uploadFile, result.Job.Version, uploadName)
	fmt.Fprintf(os.Stdout, "Job: %s (%d rows)\n", result.Job.ID, result.Rows)
	return nil
}
