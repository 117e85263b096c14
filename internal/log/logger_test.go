package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level Level, jsonOutput bool) (*DefaultLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: level, JSONOutput: jsonOutput, Output: &buf})
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"warn", WarnLevel, false},
		{" error ", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(WarnLevel, false)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "file", "a.json")
	l.Error("also shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2026-01-02 03:04:05] WARN: shown file=a.json", lines[0])
	assert.Equal(t, "[2026-01-02 03:04:05] ERROR: also shown", lines[1])

	l.SetLevel(DebugLevel)
	buf.Reset()
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "DEBUG: now visible")
}

func TestJSONOutput(t *testing.T) {
	l, buf := newTestLogger(InfoLevel, true)
	l.Info("analyzed", "functions", 3)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "analyzed functions=3", entry["message"])
	assert.Equal(t, "2026-01-02 03:04:05", entry["timestamp"])

	l.SetJSONOutput(false)
	buf.Reset()
	l.Info("plain")
	assert.True(t, strings.HasPrefix(buf.String(), "[2026-01-02 03:04:05] INFO"))
}

func TestWithPrefixesFields(t *testing.T) {
	l, buf := newTestLogger(DebugLevel, false)
	scoped := With(l, "file", "x.c")
	scoped.Error("failed", "err", "boom")
	assert.Contains(t, buf.String(), "ERROR: failed file=x.c err=boom")
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want string
	}{
		{"no args", nil, "msg"},
		{"pairs", []interface{}{"a", 1, "b", "two"}, "msg a=1 b=two"},
		{"odd leading value", []interface{}{"lead", "k", "v"}, "msg lead k=v"},
		{"non-string key skipped", []interface{}{1, 2}, "msg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMessage("msg", tt.args...))
		})
	}
}
