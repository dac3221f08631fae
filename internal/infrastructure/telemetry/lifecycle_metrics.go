package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// OutcomeOK marks a trigger that fired; rejections carry their error code
const OutcomeOK = "ok"

var (
	attrDocumentType = attribute.Key("document_type")
	attrTrigger      = attribute.Key("trigger")
	attrOutcome      = attribute.Key("outcome")
)

// LifecycleBuckets are the latency boundaries, in seconds, of transitions and sweeps
var LifecycleBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// LifecycleMetrics counts document transitions and reservation sweeps.
// A nil *LifecycleMetrics records nothing.
type LifecycleMetrics struct {
	transitions        metric.Int64Counter
	transitionDuration metric.Float64Histogram
	reservations       metric.Int64Counter
	sweepExpired       metric.Int64Counter
	sweepDuration      metric.Float64Histogram
}

// NewLifecycleMetrics registers the lifecycle instruments on meter
func NewLifecycleMetrics(meter metric.Meter) (*LifecycleMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m    LifecycleMetrics
		errs [5]error
	)
	m.transitions, errs[0] = meter.Int64Counter("backoffice_document_transitions_total",
		metric.WithDescription("Lifecycle triggers fired on quotes, orders and invoices"),
		metric.WithUnit("{transitions}"))
	m.transitionDuration, errs[1] = meter.Float64Histogram("backoffice_document_transition_duration_seconds",
		metric.WithDescription("Time spent firing a lifecycle trigger, lock and transaction included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(LifecycleBuckets...))
	m.reservations, errs[2] = meter.Int64Counter("backoffice_stock_reservations_total",
		metric.WithDescription("Stock reservations by resolution"),
		metric.WithUnit("{reservations}"))
	m.sweepExpired, errs[3] = meter.Int64Counter("backoffice_reservation_sweep_expired_total",
		metric.WithDescription("Reservations released by the expiry sweep"),
		metric.WithUnit("{reservations}"))
	m.sweepDuration, errs[4] = meter.Float64Histogram("backoffice_reservation_sweep_duration_seconds",
		metric.WithDescription("Duration of one expiry sweep"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(LifecycleBuckets...))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordTransition records one trigger of documentType with its outcome
func (m *LifecycleMetrics) RecordTransition(ctx context.Context, documentType, trigger, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attrDocumentType.String(documentType),
		attrTrigger.String(trigger),
		attrOutcome.String(outcome),
	)
	m.transitions.Add(ctx, 1, attrs)
	m.transitionDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordReservation records count reservations reaching status
// (reserved, converted, released or expired).
func (m *LifecycleMetrics) RecordReservation(ctx context.Context, status string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reservations.Add(ctx, int64(count), metric.WithAttributes(attrOutcome.String(status)))
}

// RecordSweep records one expiry sweep run
func (m *LifecycleMetrics) RecordSweep(ctx context.Context, expired, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if expired > 0 {
		m.sweepExpired.Add(ctx, int64(expired), metric.WithAttributes(attrOutcome.String(OutcomeOK)))
	}
	if failed > 0 {
		m.sweepExpired.Add(ctx, int64(failed), metric.WithAttributes(attrOutcome.String("failed")))
	}
	m.sweepDuration.Record(ctx, elapsed.Seconds())
}
