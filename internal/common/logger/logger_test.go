package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestWriterLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger("info", "json", &buf)

	log.Debug("hidden", nil)
	log.WithFields(map[string]interface{}{"runId": "run-1"}).
		WithError(errors.New("boom")).
		Warn("asset missing", map[string]interface{}{"asset": "cover"})
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "asset missing", entry["msg"])
	assert.Equal(t, "run-1", entry["runId"])
	assert.Equal(t, "cover", entry["asset"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "ts")
}
