package logging

import (
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
		name        string
		logsDir     string
		serviceName string
		want        string
	}{
		{
			name:        "basic path",
			logsDir:     "logs",
			serviceName: "sightingmap",
			want:        filepath.Join("logs", "sightingmap.20260212_213836.log"),
		},
		{
			name:        "relative path with dot",
			logsDir:     "./logs",
			serviceName: "sightingmap",
			want:        filepath.Join(".", "logs", "sightingmap.20260212_213836.log"),
		},
		{
			name:        "absolute path",
			logsDir:     filepath.Join("/var", "log", "sightingmap"),
			serviceName: "markersync",
			want:        filepath.Join("/var", "log", "sightingmap", "markersync.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.serviceName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenLogFile_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "sightingmap.log")

	f, err := OpenLogFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("hello\n")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestOpenLogFile_RotatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sightingmap.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0644))

	f, err := OpenLogFile(path)
	require.NoError(t, err)
	defer f.Close()

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(old))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, current)
}
