package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of business spans and metrics
const TracerName = "github.com/erp/backoffice"

// Span attribute keys of document and stock operations
var (
	AttrTenantID     = attribute.Key("tenant_id")
	AttrActorID      = attribute.Key("actor_id")
	AttrRequestID    = attribute.Key("request_id")
	AttrDocumentType = attribute.Key("document_type")
	AttrDocumentID   = attribute.Key("document_id")
	AttrProductID    = attribute.Key("product_id")
	AttrQuantity     = attribute.Key("quantity")
	AttrOrderRef     = attribute.Key("order_ref")
	AttrErrorCode    = attribute.Key("error_code")
)

// StartSpan starts an internal span on the global tracer provider. opts may
// override the kind or add attributes. The caller ends the span, usually
// through Finish.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}, opts...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// Fail records err on span and marks it failed. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Finish sets the span status from err and ends it
func Finish(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		Fail(span, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
