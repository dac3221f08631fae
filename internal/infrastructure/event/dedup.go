package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// DedupStats is a snapshot of a DedupHandler's counters
type DedupStats struct {
	Handled    int64 `json:"handled"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// DedupHandler hands each event id to the wrapped handler once per ttl.
// A failed delivery releases its key so a redelivery is handled again.
type DedupHandler struct {
	name    string
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger

	handled    atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// NewDedupHandler wraps handler. name scopes the keys so that handlers
// sharing a store do not shadow each other.
func NewDedupHandler(name string, handler shared.EventHandler, store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *DedupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DedupHandler{
		name:    name,
		handler: handler,
		store:   store,
		ttl:     ttl,
		logger:  logger,
	}
}

// EventTypes returns the wrapped handler's event types
func (h *DedupHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event's key and then delegates. When the store is
// unreachable the event is handled anyway.
func (h *DedupHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := h.name + ":" + event.EventID().String()

	claimed, err := h.store.Claim(ctx, key, h.ttl)
	if err != nil {
		h.logger.Warn("Delivery key unavailable, handling event anyway",
			zap.String("handler", h.name),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	} else if !claimed {
		h.duplicates.Add(1)
		h.logger.Debug("Skipping duplicate event",
			zap.String("handler", h.name),
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if claimed {
			if relErr := h.store.Release(ctx, key); relErr != nil {
				h.logger.Warn("Failed to release delivery key", zap.String("key", key), zap.Error(relErr))
			}
		}
		return err
	}
	h.handled.Add(1)
	return nil
}

// Stats returns the current counters
func (h *DedupHandler) Stats() DedupStats {
	return DedupStats{
		Handled:    h.handled.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

var _ shared.EventHandler = (*DedupHandler)(nil)
