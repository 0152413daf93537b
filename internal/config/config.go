// Package config provides configuration loading and validation for the CLI
// and the HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the pipeline configuration that can be loaded from a
// JSON file and overlaid with environment values. All fields are optional;
// missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	DataDir string `json:"data_dir,omitempty"` // Root directory for stored files and records

	// Backends
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL; empty means file-backed storage

	// Generation
	APIKey         string `json:"api_key,omitempty"`         // Gemini API key
	Model          string `json:"model,omitempty"`           // Provider model name
	MockGeneration bool   `json:"mock_generation,omitempty"` // Use the deterministic strategy, never the provider

	// Execution
	MockExecution  bool   `json:"mock_execution,omitempty"`  // Simulate the runner instead of spawning it
	Runner         string `json:"runner,omitempty"`          // Test runner executable
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // Wall-clock limit per run

	// Server
	Port    int  `json:"port,omitempty"`    // HTTP listen port
	Verbose bool `json:"verbose,omitempty"` // Print detailed progress information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:        "data",
		Model:          "gemini-2.0-flash",
		Runner:         "pytest",
		TimeoutSeconds: 300,
		Port:           8081,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables. Mock switches are
// explicit: only the literal string "true" enables them.
func FromEnv() Config {
	return Config{
		DataDir:        os.Getenv("DATA_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		Model:          os.Getenv("GEMINI_MODEL"),
		MockGeneration: os.Getenv("MOCK_GENERATION") == "true",
		MockExecution:  os.Getenv("MOCK_EXECUTION") == "true",
		Runner:         os.Getenv("TEST_RUNNER"),
	}
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. Booleans merge with OR: a mock switch set anywhere stays set.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Runner == "" {
		result.Runner = defaults.Runner
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	result.MockGeneration = result.MockGeneration || defaults.MockGeneration
	result.MockExecution = result.MockExecution || defaults.MockExecution
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'timeout_seconds' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid port number")
	}
	return nil
}

// Timeout returns the run timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
