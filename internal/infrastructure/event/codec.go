package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event: routing metadata next to the
// event's own JSON.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Codec encodes domain events into envelopes and decodes registered types back
type Codec struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewCodec creates a codec that knows every trade and inventory event
func NewCodec() *Codec {
	c := &Codec{types: make(map[string]reflect.Type)}
	c.Register(trade.EventTypeDocumentCreated, &trade.DocumentCreatedEvent{})
	c.Register(trade.EventTypeDocumentTransitioned, &trade.DocumentTransitionedEvent{})
	c.Register(trade.EventTypeInvoicePaymentRecorded, &trade.InvoicePaymentRecordedEvent{})
	for _, t := range []string{
		inventory.EventTypeStockReserved,
		inventory.EventTypeStockReservationReleased,
		inventory.EventTypeStockReservationExpired,
		inventory.EventTypeStockReservationConverted,
	} {
		c.Register(t, &inventory.StockReservationEvent{})
	}
	c.Register(inventory.EventTypeStockAdjusted, &inventory.StockAdjustedEvent{})
	return c
}

// Register maps eventType to the concrete type of instance
func (c *Codec) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.Lock()
	c.types[eventType] = t
	c.mu.Unlock()
}

// IsRegistered reports whether eventType can be decoded
func (c *Codec) IsRegistered(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.types[eventType]
	return ok
}

// Encode wraps event in an envelope and marshals it
func (c *Codec) Encode(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	env := Envelope{
		ID:            event.EventID(),
		Type:          event.EventType(),
		TenantID:      event.TenantID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		OccurredAt:    event.OccurredAt().UTC(),
		SchemaVersion: 1,
		Payload:       payload,
	}
	if v, ok := event.(shared.VersionedEvent); ok {
		env.SchemaVersion = v.SchemaVersion()
	}
	return json.Marshal(env)
}

// Decode restores the concrete event carried by an encoded envelope
func (c *Codec) Decode(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	c.mu.RLock()
	t, ok := c.types[env.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}
