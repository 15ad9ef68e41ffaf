package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies that the Load function sets the expected default values
// when no environment variables are set.
func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, name := range []string{
		"ASYNQQ_ENGINE_MAX_WORKERS",
		"ASYNQQ_ENGINE_QUEUE_SIZE",
		"ASYNQQ_ENGINE_ADMISSION_BACKOFF",
		"ASYNQQ_ENGINE_ID_FORMAT",
		"ASYNQQ_SERVER_PORT",
		"ASYNQQ_SERVER_LOG_LEVEL",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg, "Load() should return a non-nil config")
	assert.Equal(t, Default(), *cfg)
}

// TestLoadFromEnv verifies that the Load function correctly reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASYNQQ_ENGINE_MAX_WORKERS", "10")
	t.Setenv("ASYNQQ_ENGINE_QUEUE_SIZE", "500")
	t.Setenv("ASYNQQ_ENGINE_ADMISSION_BACKOFF", "50ms")
	t.Setenv("ASYNQQ_ENGINE_ID_FORMAT", "ulid")
	t.Setenv("ASYNQQ_SERVER_PORT", "9090")
	t.Setenv("ASYNQQ_SERVER_LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with valid environment variables")
	require.NotNil(t, cfg)
	assert.Equal(t, 10, cfg.Engine.MaxWorkers)
	assert.Equal(t, 500, cfg.Engine.QueueSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.AdmissionBackoff)
	assert.Equal(t, "ulid", cfg.Engine.IDFormat)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

// TestLoadFile verifies that values are read from a YAML file and that
// environment variables override them.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asynqq.yaml")
	content := []byte(`
engine:
  max_workers: 4
  admission_backoff: 25ms
server:
  port: 7070
  log_level: warn
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("ASYNQQ_SERVER_PORT", "7171")

	cfg, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.MaxWorkers)
	assert.Equal(t, 25*time.Millisecond, cfg.Engine.AdmissionBackoff)
	assert.Equal(t, "short", cfg.Engine.IDFormat)
	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile("")
	assert.Error(t, err)
}

// TestLoadValidationErrors verifies that the Load function correctly validates the configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Negative max workers",
			envVars: map[string]string{"ASYNQQ_ENGINE_MAX_WORKERS": "-1"},
		},
		{
			name:    "Negative queue size",
			envVars: map[string]string{"ASYNQQ_ENGINE_QUEUE_SIZE": "-3"},
		},
		{
			name:    "Invalid id format",
			envVars: map[string]string{"ASYNQQ_ENGINE_ID_FORMAT": "uuid"},
		},
		{
			name:    "Invalid port number",
			envVars: map[string]string{"ASYNQQ_SERVER_PORT": "999999"},
		},
		{
			name:    "Invalid log level",
			envVars: map[string]string{"ASYNQQ_SERVER_LOG_LEVEL": "invalid-level"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for name, value := range tc.envVars {
				t.Setenv(name, value)
			}

			cfg, err := Load()

			require.Error(t, err, "Load() should return an error with invalid configuration")
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), "validation failed")
			assert.Nil(t, cfg, "Config should be nil when an error occurs")
		})
	}
}

func TestValidateDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(&cfg))

	cfg.Engine.AdmissionBackoff = 0
	assert.ErrorIs(t, Validate(&cfg), ErrValidation)
}
