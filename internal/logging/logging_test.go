package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "vrlogs",
			want:    filepath.Join("vrlogs", "hlvr_vrcore.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./vrlogs",
			want:    filepath.Join(".", "vrlogs", "hlvr_vrcore.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "hlvr"),
			want:    filepath.Join("/var", "log", "hlvr", "hlvr_vrcore.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, "hlvr_vrcore", sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenLogFile_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	f, err := OpenLogFile(dir, "hlvr_vrcore", start)
	require.NoError(t, err)
	_, err = f.WriteString("hello\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(LogFilePath(dir, "hlvr_vrcore", start))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("table", "frames").Msg("slow write")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, ServiceName, entry["service"])
	assert.Equal(t, "frames", entry["table"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewZerolog_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "loud")

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
