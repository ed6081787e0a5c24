package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/contextkeys"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Errorf("error %d", 7)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "warn", lines[0]["msg"])
	assert.Equal(t, "error 7", lines[1]["msg"])
	assert.Equal(t, WarnLevel, logger.Level())
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("user_id", "u1").
		WithFields(map[string]interface{}{"route": "search", "limit": 10}).
		WithError(errors.New("boom")).
		Info("request rejected")
	logger.WithError(nil).Debug("no error field")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "u1", lines[0]["user_id"])
	assert.Equal(t, "search", lines[0]["route"])
	assert.Equal(t, float64(10), lines[0]["limit"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.NotContains(t, lines[1], "error")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), base)
	ctx = contextkeys.WithRequestID(ctx, "req-1")
	ctx = contextkeys.WithUserID(ctx, "user-1")

	FromContext(ctx).Info("handled")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "user-1", lines[0]["user_id"])

	assert.Same(t, base, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		" DEBUG ": DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"verbose": InfoLevel,
		"":        InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLogLevel(input), "input %q", input)
	}
	assert.Equal(t, "WARN", WarnLevel.String())
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	logger.WithField("k", "v").Warn("discarded")
}
