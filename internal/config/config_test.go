package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"data_dir": "/var/lib/testpilot",
		"mock_generation": true,
		"mock_execution": true,
		"runner": "pytest",
		"timeout_seconds": 60,
		"port": 9000
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/var/lib/testpilot", cfg.DataDir)
	assert.True(t, cfg.MockGeneration)
	assert.True(t, cfg.MockExecution)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{DataDir: "custom", MockExecution: true}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, "custom", merged.DataDir)
	assert.Equal(t, "pytest", merged.Runner)
	assert.Equal(t, 300, merged.TimeoutSeconds)
	assert.Equal(t, 8081, merged.Port)
	assert.True(t, merged.MockExecution)
	assert.False(t, merged.MockGeneration)
}

func TestMergeWithDefaults_BooleansMergeWithOr(t *testing.T) {
	cfg := Config{}
	merged := cfg.MergeWithDefaults(Config{MockGeneration: true})
	assert.True(t, merged.MockGeneration)

	// A set switch is never unset by later layers.
	cfg = Config{MockGeneration: true}
	merged = cfg.MergeWithDefaults(Config{})
	assert.True(t, merged.MockGeneration)
}

func TestFromEnv_ExplicitMockSwitches(t *testing.T) {
	t.Setenv("MOCK_GENERATION", "true")
	t.Setenv("MOCK_EXECUTION", "1") // only the literal "true" counts
	t.Setenv("DATA_DIR", "/tmp/env-data")

	cfg := FromEnv()
	assert.True(t, cfg.MockGeneration)
	assert.False(t, cfg.MockExecution)
	assert.Equal(t, "/tmp/env-data", cfg.DataDir)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())

	cfg.TimeoutSeconds = -1
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestTimeout(t *testing.T) {
	cfg := Config{TimeoutSeconds: 90}
	assert.Equal(t, 90*time.Second, cfg.Timeout())
}
