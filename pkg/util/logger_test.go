package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "files", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, float64(3), entry["files"])
}

func TestNewLogger_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelDebug, Output: &buf})

	logger.Debug("parsing file", "path", "src/a.ts")
	assert.Contains(t, buf.String(), "msg=\"parsing file\"")
	assert.Contains(t, buf.String(), "path=src/a.ts")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseLogFormat(t *testing.T) {
	f, err := ParseLogFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestGetOptimalPoolSizeWithOverride(t *testing.T) {
	assert.Equal(t, 3, GetOptimalPoolSizeWithOverride(3))
	assert.Equal(t, GetOptimalPoolSize(), GetOptimalPoolSizeWithOverride(0))
	assert.GreaterOrEqual(t, GetOptimalPoolSize(), 1)
}
