package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)
	id := uuid.New()

	_, internal := telemetry.StartSpan(context.Background(), "order.ship",
		trace.WithAttributes(telemetry.AttrDocumentID.String(id.String()), telemetry.AttrQuantity.Int64(3)),
	)
	internal.End()
	ctx, consumer := telemetry.StartSpan(context.Background(), "event.dispatch", trace.WithSpanKind(trace.SpanKindConsumer))
	assert.True(t, trace.SpanContextFromContext(ctx).TraceID().IsValid())
	consumer.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "order.ship", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, id.String(), attrs[telemetry.AttrDocumentID].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.AttrQuantity].AsInt64())
	assert.Equal(t, trace.SpanKindConsumer, spans[1].SpanKind())
}

func TestFinish(t *testing.T) {
	sr := setupTestTracer(t)

	_, failed := telemetry.StartSpan(context.Background(), "invoice.send")
	telemetry.Finish(failed, errors.New("invoice has no lines"))

	_, ok := telemetry.StartSpan(context.Background(), "invoice.approve")
	telemetry.Fail(ok, nil)
	telemetry.Finish(ok, nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "invoice has no lines", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Empty(t, spans[1].Events())
}

func TestFail_KeepsSpanOpen(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "event.dispatch")
	telemetry.Fail(span, errors.New("handler one"))
	telemetry.Fail(span, errors.New("handler two"))
	assert.Empty(t, sr.Ended())
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Len(t, spans[0].Events(), 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.Fail(nil, errors.New("x"))
		telemetry.Finish(nil, nil)
	})
}
