package observability

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

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	return &buf
}

func TestWithContext(t *testing.T) {
	t.Run("adds the trace id of the active span", func(t *testing.T) {
		buf := captureDefault(t)
		traceID := trace.TraceID{0x0a, 0x1b, 0x2c, 0x3d, 0x4e, 0x5f, 0x60, 0x71, 0x82, 0x93, 0xa4, 0xb5, 0xc6, 0xd7, 0xe8, 0xf9}
		sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{1}})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		WithContext(ctx, "order_id", 42).Info("order auto-confirmed")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, traceID.String(), line["trace_id"])
		assert.Equal(t, float64(42), line["order_id"])
	})

	t.Run("no span, no trace id", func(t *testing.T) {
		buf := captureDefault(t)

		WithContext(context.Background(), "user_id", 1).Error("failed to handle event")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.NotContains(t, line, "trace_id")
		assert.Equal(t, float64(1), line["user_id"])
	})
}
