package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func (failingStore) Release(context.Context, string) error { return nil }

func TestDedupHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("redelivery is skipped", func(t *testing.T) {
		inner := newTestHandler(trade.EventTypeDocumentTransitioned)
		h := NewDedupHandler("notify", inner, cache.NewMemoryIdempotencyStore(), time.Hour, zap.NewNop())
		event := transitionedEvent(t)

		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, transitionedEvent(t)))

		assert.Len(t, inner.getHandled(), 2)
		assert.Equal(t, DedupStats{Handled: 2, Duplicates: 1}, h.Stats())
		assert.Equal(t, []string{trade.EventTypeDocumentTransitioned}, h.EventTypes())
	})

	t.Run("failure frees the key for a retry", func(t *testing.T) {
		inner := newTestHandler()
		inner.err = errors.New("smtp down")
		h := NewDedupHandler("notify", inner, cache.NewMemoryIdempotencyStore(), time.Hour, zap.NewNop())
		event := transitionedEvent(t)

		assert.Error(t, h.Handle(ctx, event))
		inner.err = nil
		require.NoError(t, h.Handle(ctx, event))

		assert.Len(t, inner.getHandled(), 2)
		assert.Equal(t, DedupStats{Handled: 1, Failed: 1}, h.Stats())
	})

	t.Run("handlers sharing a store keep separate keys", func(t *testing.T) {
		store := cache.NewMemoryIdempotencyStore()
		first, second := newTestHandler(), newTestHandler()
		a := NewDedupHandler("a", first, store, time.Hour, nil)
		b := NewDedupHandler("b", second, store, time.Hour, nil)
		event := transitionedEvent(t)

		require.NoError(t, a.Handle(ctx, event))
		require.NoError(t, b.Handle(ctx, event))
		assert.Len(t, first.getHandled(), 1)
		assert.Len(t, second.getHandled(), 1)
	})

	t.Run("unreachable store does not drop events", func(t *testing.T) {
		inner := newTestHandler()
		h := NewDedupHandler("notify", inner, failingStore{}, time.Hour, zap.NewNop())
		event := transitionedEvent(t)

		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, event))
		assert.Len(t, inner.getHandled(), 2)
	})

	t.Run("wired through the bus", func(t *testing.T) {
		inner := newTestHandler(trade.EventTypeDocumentTransitioned)
		bus := NewInMemoryEventBus(zap.NewNop())
		bus.Subscribe(NewDedupHandler("notify", inner, cache.NewMemoryIdempotencyStore(), time.Hour, nil))
		event := transitionedEvent(t)

		require.NoError(t, bus.Publish(ctx, event))
		require.NoError(t, bus.Publish(ctx, event))
		assert.Len(t, inner.getHandled(), 1)
	})
}
