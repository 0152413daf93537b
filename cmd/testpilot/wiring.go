package main

import (
	"context"
	"fmt"

	"github.com/jonathan/testpilot/internal/config"
	"github.com/jonathan/testpilot/internal/llm"
	"github.com/jonathan/testpilot/internal/pipeline"
	"github.com/jonathan/testpilot/internal/storage"
)

// Flags shared by every subcommand.
var (
	configPath string
	dataDir    string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Root directory for stored files and records")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress information")
}

// loadConfig merges flags over the optional config file, then the
// environment, then the built-in defaults. Flags win.
func loadConfig() (config.Config, error) {
	cfg := config.Config{DataDir: dataDir, Verbose: verbose}

	if configPath != "" {
		fileCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
	}
	cfg = cfg.MergeWithDefaults(config.FromEnv())
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newService wires a pipeline service from configuration. The returned
// cleanup must run before exit.
func newService(ctx context.Context) (*pipeline.Service, config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	var store storage.Store
	if cfg.DatabaseURL != "" {
		store, err = storage.NewPGStore(ctx, cfg.DatabaseURL, cfg.DataDir)
	} else {
		store, err = storage.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		return nil, config.Config{}, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var client llm.Client
	if cfg.MockGeneration {
		client = llm.NewMockClient()
	} else {
		client, err = llm.NewClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			store.Close()
			return nil, config.Config{}, nil, fmt.Errorf("failed to create provider client: %w", err)
		}
	}

	cleanup := func() {
		_ = client.Close()
		store.Close()
	}
	return pipeline.NewService(store, client, cfg), cfg, cleanup, nil
}
