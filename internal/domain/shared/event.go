package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about a tenant's aggregate, published after the unit
// of work that produced it commits.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// VersionedEvent is implemented by events whose payload layout has a version
type VersionedEvent interface {
	DomainEvent
	SchemaVersion() int
}

// EventHeader is embedded by every concrete event. It serializes next to the
// event's own fields.
type EventHeader struct {
	ID        uuid.UUID `json:"event_id"`
	Type      string    `json:"event_type"`
	At        time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
	AggKind   string    `json:"aggregate_type"`
	Tenant    uuid.UUID `json:"tenant_id"`
	Version   int       `json:"schema_version,omitempty"`
}

// NewEventHeader stamps a version 1 header with a fresh id and the current time
func NewEventHeader(eventType, aggregateType string, aggregateID, tenantID uuid.UUID) EventHeader {
	return EventHeader{
		ID:        uuid.New(),
		Type:      eventType,
		At:        time.Now().UTC(),
		Aggregate: aggregateID,
		AggKind:   aggregateType,
		Tenant:    tenantID,
		Version:   1,
	}
}

func (h *EventHeader) EventID() uuid.UUID     { return h.ID }
func (h *EventHeader) EventType() string      { return h.Type }
func (h *EventHeader) OccurredAt() time.Time  { return h.At }
func (h *EventHeader) AggregateID() uuid.UUID { return h.Aggregate }
func (h *EventHeader) AggregateType() string  { return h.AggKind }
func (h *EventHeader) TenantID() uuid.UUID    { return h.Tenant }

// SchemaVersion treats a missing version as 1
func (h *EventHeader) SchemaVersion() int {
	if h.Version < 1 {
		return 1
	}
	return h.Version
}

// EventHandler reacts to published events. An empty EventTypes subscribes
// to every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands events to whoever listens
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher with a subscriber list and a lifecycle
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
