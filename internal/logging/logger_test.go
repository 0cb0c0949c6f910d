package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"silent", LogLevelSilent, false},
		{"error", LogLevelError, false},
		{"", LogLevelInfo, false},
		{"info", LogLevelInfo, false},
		{"verbose", LogLevelVerbose, false},
		{"debug", LogLevelDebug, false},
		{"bogus", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatLogLine(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 15, 123456000, time.UTC)

	line := FormatLogLine(at, "client-9940", "sending message")
	assert.Equal(t, "09:30:15.123456: client-9940: sending message", line)

	line = FormatLogLine(at, "", "Test status: ok")
	assert.Equal(t, "09:30:15.123456: Test status: ok", line)
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := NewLogger(LogLevelInfo, path)
	require.NoError(t, err)

	logger.Trace("server-9940", "listening on port %d", 9940)
	logger.Error("boom: %s", "details")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "server-9940: listening on port 9940")
	assert.Contains(t, content, "ERROR: boom: details")
}

func TestLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := NewLogger(LogLevelError, path)
	require.NoError(t, err)

	logger.Info("should not appear")
	logger.Debug("nor this")
	logger.Error("only this")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "should not appear")
	assert.NotContains(t, content, "nor this")
	assert.Contains(t, content, "only this")
}

func TestTraceMessageIndentsBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := NewLogger(LogLevelInfo, path)
	require.NoError(t, err)

	logger.TraceMessage("client-9940", "sent", "Logon : 35=A, 49=FixClient")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "client-9940: sent")
	assert.Equal(t, "    Logon : 35=A, 49=FixClient", lines[1])
}
