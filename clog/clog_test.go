package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newJSONLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append(opts, WithWriter(&buf))
	logger, err := New(&Config{Level: level, Format: "json"}, opts...)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "json", config: &Config{Level: "info", Format: "json", Output: "stderr"}},
		{name: "defaults filled", config: &Config{}},
		{name: "invalid level", config: &Config{Level: "loud"}, wantErr: true},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
		{name: "file output", config: &Config{Output: t.TempDir() + "/awx.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLevels(t *testing.T) {
	logger, buf := newJSONLogger(t, "debug")

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 4)
	for i, want := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		assert.Equal(t, want, entries[i]["level"])
	}
}

func TestSetLevelSharedWithChildren(t *testing.T) {
	logger, buf := newJSONLogger(t, "info")
	child := logger.WithNamespace("analytics")

	child.Debug("hidden")
	require.NoError(t, logger.SetLevel(DebugLevel))
	child.Debug("visible")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["msg"])
}

func TestNamespace(t *testing.T) {
	logger, buf := newJSONLogger(t, "info", WithNamespace("awx"))

	logger.WithNamespace("server", "metrics").Info("request")
	logger.Info("root")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "awx.server.metrics", entries[0][NamespaceKey])
	assert.Equal(t, "awx", entries[1][NamespaceKey])
}

func TestWithDoesNotLeakBetweenSiblings(t *testing.T) {
	logger, buf := newJSONLogger(t, "info")
	base := logger.With(String("k1", "v1"), String("k2", "v2"), String("k3", "v3"))

	a := base.With(String("x", "A"))
	_ = base.With(String("x", "B"))
	a.Info("msg")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0]["x"])
	assert.Equal(t, "v1", entries[0]["k1"])
}

type ctxKey string

func TestContextFields(t *testing.T) {
	logger, buf := newJSONLogger(t, "info",
		WithContextField(ctxKey("request_id"), "request_id"),
		WithTraceContext(),
	)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("clog-test").Start(context.Background(), "op")
	defer span.End()
	ctx = context.WithValue(ctx, ctxKey("request_id"), "req-1")

	logger.InfoContext(ctx, "with context")
	logger.InfoContext(context.Background(), "without context")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0]["trace_id"])
	assert.NotEmpty(t, entries[0]["span_id"])
	assert.NotContains(t, entries[1], "request_id")
	assert.NotContains(t, entries[1], "trace_id")
}

func TestErrorFields(t *testing.T) {
	logger, buf := newJSONLogger(t, "info")
	err := errors.New("boom")

	logger.Error("plain", Error(err))
	logger.Error("coded", ErrorWithCode(err, "METRIC_SOURCE_UNAVAILABLE"))
	logger.Error("stack", ErrorWithStack(err))
	logger.Error("nil", Error(nil))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 4)

	assert.Equal(t, "boom", entries[0]["err_msg"])

	coded, ok := entries[1]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "METRIC_SOURCE_UNAVAILABLE", coded["code"])
	assert.Equal(t, "boom", coded["msg"])

	stack, ok := entries[2]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "*errors.errorString", stack["type"])
	assert.NotEmpty(t, stack["stack"])

	assert.NotContains(t, entries[3], "err_msg")
}

func TestFieldConstructors(t *testing.T) {
	logger, buf := newJSONLogger(t, "info")

	logger.Info("fields",
		String("s", "v"),
		Int("i", 42),
		Int64("i64", 7),
		Float64("f", 1.5),
		Bool("b", true),
		Strings("labels", []string{"hostname", "instance_uuid"}),
	)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "v", entries[0]["s"])
	assert.Equal(t, float64(42), entries[0]["i"])
	assert.Equal(t, float64(7), entries[0]["i64"])
	assert.Equal(t, 1.5, entries[0]["f"])
	assert.Equal(t, true, entries[0]["b"])
	assert.Equal(t, "hostname,instance_uuid", entries[0]["labels"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"nope", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "warn", WarnLevel.String())
	assert.Equal(t, "level(3)", Level(3).String())
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("ignored")
	assert.NoError(t, logger.SetLevel(DebugLevel))
	assert.Equal(t, logger, logger.WithNamespace("x").With(String("a", "b")))
}
