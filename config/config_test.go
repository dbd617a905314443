package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, "tinydolphin:1.1b", cfg.Model.ID)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Jobs.HeartbeatInterval)
	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, "slog", cfg.Logging.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: openai
  id: gpt-4o-mini
server:
  addr: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.ID)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	// untouched values keep their defaults
	assert.Equal(t, 1024, cfg.Model.MaxTokens)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: openai\n"), 0o644))

	t.Setenv("ENCLAVE_MODEL_PROVIDER", "anthropic")
	t.Setenv("ENCLAVE_MODEL_MAX_TOKENS", "256")
	t.Setenv("ENCLAVE_QUEUE_WORKERS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, 256, cfg.Model.MaxTokens)
	assert.Equal(t, 7, cfg.Queue.Workers)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Model.Provider)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown provider", map[string]string{"ENCLAVE_MODEL_PROVIDER": "bard"}},
		{"non-positive max tokens", map[string]string{"ENCLAVE_MODEL_MAX_TOKENS": "0"}},
		{"non-positive workers", map[string]string{"ENCLAVE_QUEUE_WORKERS": "-1"}},
		{"unknown logging backend", map[string]string{"ENCLAVE_LOGGING_BACKEND": "log4j"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
