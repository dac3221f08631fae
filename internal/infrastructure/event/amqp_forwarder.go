package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/erp/backoffice/internal/domain/shared"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// ErrForwarderClosed is returned when publishing through a closed forwarder
var ErrForwarderClosed = errors.New("amqp forwarder is closed")

// Channel is the part of *amqp.Channel the forwarder uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder is a wildcard event handler that republishes every domain
// event to a topic exchange. Routing keys look like "order.DocumentTransitioned".
type AMQPForwarder struct {
	mu       sync.Mutex
	ch       Channel
	conn     *amqp.Connection
	exchange string
	codec    *Codec
	logger   *zap.Logger
	closed   bool
}

// DialAMQPForwarder connects to url and declares exchange
func DialAMQPForwarder(url, exchange string, logger *zap.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	f, err := NewAMQPForwarder(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

// NewAMQPForwarder declares a durable topic exchange on ch
func NewAMQPForwarder(ch Channel, exchange string, logger *zap.Logger) (*AMQPForwarder, error) {
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("amqp exchange name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPForwarder{
		ch:       ch,
		exchange: exchange,
		codec:    NewCodec(),
		logger:   logger,
	}, nil
}

// EventTypes returns nil: the forwarder receives every event
func (f *AMQPForwarder) EventTypes() []string { return nil }

// Handle publishes event as a persistent JSON message
func (f *AMQPForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	body, err := f.codec.Encode(event)
	if err != nil {
		return err
	}

	headers := amqp.Table{"tenant_id": event.TenantID().String()}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID().String(),
		Timestamp:    event.OccurredAt(),
		Type:         event.EventType(),
		Headers:      headers,
		Body:         body,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrForwarderClosed
	}
	key := RoutingKey(event)
	if err := f.ch.PublishWithContext(ctx, f.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	f.logger.Debug("Event forwarded",
		zap.String("exchange", f.exchange),
		zap.String("routing_key", key),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// Close closes the channel and, when dialed, the connection
func (f *AMQPForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	err := f.ch.Close()
	if f.conn != nil {
		err = errors.Join(err, f.conn.Close())
	}
	return err
}

// RoutingKey returns "<aggregate>.<event type>" with the aggregate lower-cased
func RoutingKey(event shared.DomainEvent) string {
	return strings.ToLower(event.AggregateType()) + "." + event.EventType()
}

// headerCarrier adapts AMQP headers to the otel propagation carrier
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c headerCarrier) Set(key, value string) { c[key] = value }

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

var _ shared.EventHandler = (*AMQPForwarder)(nil)
