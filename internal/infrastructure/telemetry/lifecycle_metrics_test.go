package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

// collect returns the metric named name from the reader, or nil
func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewLifecycleMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewLifecycleMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestLifecycleMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.LifecycleMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordTransition(ctx, "order", "ship", telemetry.OutcomeOK, time.Millisecond)
		m.RecordReservation(ctx, "reserved", 2)
		m.RecordSweep(ctx, 1, 0, time.Millisecond)
	})
}

func TestLifecycleMetrics_RecordTransition(t *testing.T) {
	ctx := context.Background()
	reader, provider := newManualMeter(t)
	m, err := telemetry.NewLifecycleMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordTransition(ctx, "order", "ship", telemetry.OutcomeOK, 5*time.Millisecond)
	m.RecordTransition(ctx, "order", "ship", telemetry.OutcomeOK, 7*time.Millisecond)
	m.RecordTransition(ctx, "order", "ship", "INVALID_TRANSITION", time.Millisecond)

	data := collect(t, reader, "backoffice_document_transitions_total")
	require.NotNil(t, data)
	sum, ok := data.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		docType, _ := dp.Attributes.Value(attribute.Key("document_type"))
		assert.Equal(t, "order", docType.AsString())
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byOutcome[telemetry.OutcomeOK])
	assert.Equal(t, int64(1), byOutcome["INVALID_TRANSITION"])

	data = collect(t, reader, "backoffice_document_transition_duration_seconds")
	require.NotNil(t, data)
	hist, ok := data.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, telemetry.LifecycleBuckets, hist.DataPoints[0].Bounds)
}

func TestLifecycleMetrics_ReservationsAndSweep(t *testing.T) {
	ctx := context.Background()
	reader, provider := newManualMeter(t)
	m, err := telemetry.NewLifecycleMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordReservation(ctx, "reserved", 3)
	m.RecordReservation(ctx, "converted", 0)
	m.RecordSweep(ctx, 4, 1, 30*time.Millisecond)

	data := collect(t, reader, "backoffice_stock_reservations_total")
	require.NotNil(t, data)
	sum := data.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	data = collect(t, reader, "backoffice_reservation_sweep_expired_total")
	require.NotNil(t, data)
	var total int64
	for _, dp := range data.Data.(metricdata.Sum[int64]).DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(5), total)

	data = collect(t, reader, "backoffice_reservation_sweep_duration_seconds")
	require.NotNil(t, data)
	assert.Equal(t, uint64(1), data.Data.(metricdata.Histogram[float64]).DataPoints[0].Count)
}
