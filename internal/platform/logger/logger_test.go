package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		level      string
		debugShown bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"DEBUG", true},
		{"", false},
		{"nonsense", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := setup(tt.level, &buf)

			logger.Debug("debug line")
			assert.Equal(t, tt.debugShown, buf.Len() > 0)
		})
	}
}

func TestSetupEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setup("info", &buf)
	logger.Info("task received", "session_id", "sess1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task received", entry["msg"])
	assert.Equal(t, "sess1", entry["session_id"])
}
