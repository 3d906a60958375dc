package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogEntryString(t *testing.T) {
	entry := JSONLogEntry{
		Message: "Test message",
	}
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entry.String()), &parsed))
	assert.Equal(t, "Test message", parsed["message"])
	assert.Equal(t, "INFO", parsed["severity"]) // Default severity
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	log := NewJSONLoggerWithWriter(&buf, LevelDebug)
	log.(*jsonLogger).now = func() time.Time { return ts }

	log.Trace("hidden")
	log.WithPrefix("[cache]").With(map[string]interface{}{"key": "k1"}).Debug("hit for %s", Red+"k1"+Reset)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "DEBUG", entry.Severity)
	assert.Equal(t, "hit for k1", entry.Message)
	assert.Equal(t, "cache", entry.Component)
	assert.Equal(t, "k1", entry.Metadata["key"])
	assert.True(t, ts.Equal(entry.Timestamp))
}

func TestJSONLoggerComponentFromMetadata(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerWithWriter(&buf, LevelInfo).With(map[string]interface{}{"component": "store"})
	log.Info("ready")

	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store", entry.Component)
	assert.Nil(t, entry.Metadata)
}
