// Package main provides the entry point for the test automation pipeline
// CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "testpilot",
	Short: "Requirements-to-test-automation pipeline",
	Long:  "testpilot turns requirement CSVs into synthesized test cases, rendered pytest scripts, and executed, reported runs.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
