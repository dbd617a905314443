package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapsys/enclave/completion/ollama"
	"github.com/adapsys/enclave/config"
	"github.com/adapsys/enclave/logging"
)

func TestNewLogger_DefaultsToSlog(t *testing.T) {
	logger, err := newLogger(config.Default())
	require.NoError(t, err)
	assert.IsType(t, &logging.SlogAdapter{}, logger)
}

func TestNewLogger_ZapBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Backend = "zap"
	cfg.Logging.Level = "debug"

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	assert.IsType(t, &logging.ZapAdapter{}, logger)
}

func TestBuildCompleter_ProviderSwitch(t *testing.T) {
	cfg := config.Default()

	completer, err := buildCompleter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ollama.Completer{}, completer)

	cfg.Model.Provider = "bard"
	_, err = buildCompleter(cfg)
	assert.Error(t, err)
}
