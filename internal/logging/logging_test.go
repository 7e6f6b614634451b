package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", "info"))

	logger.Debug("hidden")
	logger.Info("provider ready", "provider", "groq")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "provider ready", entry["msg"])
	assert.Equal(t, "groq", entry["provider"])
}

func TestNewHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "text", "debug"))

	logger.Debug("benchmark recorded", "provider", "gemini")

	out := buf.String()
	assert.Contains(t, out, "benchmark recorded")
	assert.Contains(t, out, "provider=gemini")
	// a bytes.Buffer is not a terminal, so no escape codes
	assert.NotContains(t, out, "\033[")
}

func TestNewHandler_AutoDetectNonTTY(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "", "info"))
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "non-terminal output should be JSON")
}
