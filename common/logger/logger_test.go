package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"exam-service/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestJSONOutputCarriesTraceContext(t *testing.T) {
	t.Setenv("ENV", "prod")

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	log.InfoContext(ctx, "test published", "test_id", 7)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "test published", line["msg"])
	assert.Equal(t, float64(7), line["test_id"])
	assert.Equal(t, traceID.String(), line["trace_id"])
	assert.Equal(t, spanID.String(), line["span_id"])
}

func TestTextOutputLocally(t *testing.T) {
	t.Setenv("ENV", "local")

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf).With("service", "exam-service")

	log.Debug("debug visible")
	log.Warn("careful", "attempts", 2)

	out := buf.String()
	assert.Contains(t, out, "debug visible")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "attempts=2")
	assert.Contains(t, out, "service=exam-service")
	assert.NotContains(t, out, "trace_id")
}
