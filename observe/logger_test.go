package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

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
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "invalid JSON log line %q", line)
		out = append(out, entry)
	}
	return out
}

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	log.Info(context.Background(), "rendered", F("key", "abc"), F("cached", true))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "rendered", entry["msg"])
	assert.Equal(t, "abc", entry["key"])
	assert.Equal(t, true, entry["cached"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	log.Debug(ctx, "d")
	log.Info(ctx, "i")
	log.Warn(ctx, "w")
	log.Error(ctx, "e")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "w", lines[0]["msg"])
	assert.Equal(t, "e", lines[1]["msg"])
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("debug", &buf)

	log.Info(context.Background(), "invocation",
		F("query", `\int_0^1 x\,dx`),
		F("api_key", "k-123"),
		F("scope", "guild-1"),
	)

	entry := decodeLines(t, &buf)[0]
	assert.Equal(t, "[REDACTED]", entry["query"])
	assert.Equal(t, "[REDACTED]", entry["api_key"])
	assert.Equal(t, "guild-1", entry["scope"])
}

func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)
	log.Error(context.Background(), "failed", F("error", errors.New("upstream 502")))

	assert.Equal(t, "upstream 502", decodeLines(t, &buf)[0]["error"])
}

func TestLogger_WithCommandAndWith(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)

	log := base.WithCommand(CommandMeta{Name: "latex", Scope: "guild-9", InvocationID: "inv-1"}).
		With(F("key", "deadbeef"))
	log.Info(context.Background(), "done")
	base.Info(context.Background(), "plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	scoped := lines[0]
	assert.Equal(t, "latex", scoped["command"])
	assert.Equal(t, "guild-9", scoped["scope"])
	assert.Equal(t, "inv-1", scoped["invocation_id"])
	assert.Equal(t, "deadbeef", scoped["key"])
	assert.NotContains(t, lines[1], "command", "child fields leaked into the parent logger")
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			log.With(F("n", 1)).Info(context.Background(), "concurrent")
		})
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, &buf), 20)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"unknown": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "ParseLogLevel(%q)", in)
	}
}
