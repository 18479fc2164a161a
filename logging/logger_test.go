package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("nope"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestRuntimeLogger_AttributesAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.Debug("hidden")
	l.WithComponent("executor").WithCall("c1").With("goal", "g").Info("executor.forward.start", "tools", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "executor.forward.start", lines[0]["msg"])
	assert.Equal(t, "executor", lines[0]["component"])
	assert.Equal(t, "c1", lines[0]["call_id"])
	assert.Equal(t, "g", lines[0]["goal"])
	assert.Equal(t, float64(2), lines[0]["tools"])
}

func TestRuntimeLogger_CloneDoesNotShareAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})
	_ = base.With("a", 1)
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["a"]
	assert.False(t, ok)
}

func TestRuntimeLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	l.LogToolCall("search_markets", time.Millisecond, nil)
	l.LogLLMCall("openai/gpt", 12, time.Millisecond, errors.New("boom"))
	l.LogFetch("gamma", "markets", 500, time.Millisecond, errors.New("bad status"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "tool.call.completed", lines[0]["msg"])
	assert.Equal(t, "llm.call.failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "upstream.fetch.failed", lines[2]["msg"])
	assert.Equal(t, "WARN", lines[2]["level"])
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.InfoLevel))

	z.Debug("hidden")
	z.Warn("polymarket.fetch.error", "client", "gamma", "err", errors.New("timeout"), "dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "gamma", lines[0]["client"])
	assert.Equal(t, "timeout", lines[0]["err"])
	assert.Equal(t, "dangling", lines[0]["!BADKEY"])
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
