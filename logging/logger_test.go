package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"ERROR", LogLevelError},
		{"", LogLevelInfo},
		{"bogus", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LogLevelInfo, Format: "json", Output: &buf})

	logger.Info("request served", "status", 200)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request served"`)
	assert.Contains(t, out, `"status":200`)
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LogLevelDebug, Format: "text", Output: &buf})

	logger.Debug("probe", "key", "value")

	assert.Contains(t, buf.String(), "msg=probe")
	assert.Contains(t, buf.String(), "key=value")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LogLevelWarn, Format: "json", Output: &buf})

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestZapAdapter_LogsThroughInterface(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)

	var logger Logger = NewZapAdapter(zap.New(core))
	logger.Info("backend ready", "provider", "ollama")
	logger.Error("backend failed", "attempt", 3)

	entries := observed.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "backend ready", entries[0].Message)
	assert.Equal(t, "ollama", entries[0].ContextMap()["provider"])

	assert.Equal(t, zap.ErrorLevel, entries[1].Entry.Level)
	assert.EqualValues(t, 3, entries[1].ContextMap()["attempt"])
}

func TestNewZapLogger_Builds(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, err := NewZapLogger(LogLevelInfo, format)
		require.NoError(t, err, "format %q", format)
		require.NotNil(t, logger)
		assert.IsType(t, &ZapAdapter{}, logger)
	}
}

func TestNoOpLogger_Discards(t *testing.T) {
	var logger Logger = NoOpLogger{}
	logger.Debug("a")
	logger.Info("b", "k", "v")
	logger.Warn("c")
	logger.Error("d")
}
