package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/testpilot/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for the upload, generation, execution, and reporting stages.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	service, cfg, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	port := cfg.Port
	if servePort != 0 {
		port = servePort
	}

	srv := server.New(service, server.Config{Port: port})
	return srv.Start()
}
