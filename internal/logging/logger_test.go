package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "", want: zapcore.InfoLevel},
		{name: "debug", want: zapcore.DebugLevel},
		{name: "warn", want: zapcore.WarnLevel},
		{name: "error", want: zapcore.ErrorLevel},
		{name: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mfareport.log")
	logger, err := New(Options{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("report delivered", zap.String("recipient", "security@acme.com"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "report delivered", entry["msg"])
	assert.Equal(t, "security@acme.com", entry["recipient"])
	assert.Contains(t, entry, "ts")
}

func TestNewDebugOverridesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mfareport.log")
	logger, err := New(Options{Level: "error", Format: "json", File: path, Debug: true})
	require.NoError(t, err)

	logger.Debug("visible")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
