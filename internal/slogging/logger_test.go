package slogging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"bogus", LogLevelInfo},
		{"", LogLevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLogLevel(tt.input), "input %q", tt.input)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
}

func TestSanitizeLogMessage(t *testing.T) {
	assert.Equal(t, "line one line two", SanitizeLogMessage("line one\nline two"))
	assert.Equal(t, "tab here", SanitizeLogMessage("tab\there"))
	assert.Equal(t, "clean", SanitizeLogMessage("clean"))
	// Other control characters are stripped entirely
	assert.Equal(t, "ab", SanitizeLogMessage("a\x00b"))
}

func TestNewLoggerCreatesLogDir(t *testing.T) {
	dir := t.TempDir() + "/nested/logs"

	logger, err := NewLogger(Config{
		Level:  LogLevelDebug,
		IsDev:  true,
		LogDir: dir,
	})
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	assert.DirExists(t, dir)

	// Level filtering happens before the slog handler
	logger.Debug("debug message %d", 1)
	logger.Info("info message")
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  LogLevelError,
		LogDir: t.TempDir(),
	})
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	// These are filtered out without touching the handler
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("dropped")
	logger.Error("kept")
}
