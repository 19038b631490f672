package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestHandler_AttachesSpanContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	tests := []struct {
		name      string
		ctx       context.Context
		wantTrace bool
	}{
		{name: "with span", ctx: ctx, wantTrace: true},
		{name: "without span", ctx: context.Background(), wantTrace: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			slog.New(NewHandler(&buf, "info", "production")).InfoContext(tt.ctx, "hello")

			rec := decode(t, &buf)
			if tt.wantTrace {
				assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
				assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
			} else {
				assert.NotContains(t, rec, "trace_id")
			}
		})
	}
}

func TestHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "warn", "production"))

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(NewHandler(&buf, "info", "production")))

	ctx = With(ctx, "wallet_id", "w1")
	FromContext(ctx).With("step", "send").InfoContext(ctx, "hello")

	rec := decode(t, &buf)
	assert.Equal(t, "w1", rec["wallet_id"])
	assert.Equal(t, "send", rec["step"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}
