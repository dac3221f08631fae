package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_EncodeDecode(t *testing.T) {
	codec := NewCodec()

	t.Run("envelope carries routing metadata", func(t *testing.T) {
		event := transitionedEvent(t)
		data, err := codec.Encode(event)
		require.NoError(t, err)

		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, event.EventID(), env.ID)
		assert.Equal(t, trade.EventTypeDocumentTransitioned, env.Type)
		assert.Equal(t, event.TenantID(), env.TenantID)
		assert.Equal(t, trade.AggregateTypeOrder, env.AggregateType)
		assert.Equal(t, 1, env.SchemaVersion)
		assert.Equal(t, time.UTC, env.OccurredAt.Location())
	})

	t.Run("transition event is restored", func(t *testing.T) {
		event := transitionedEvent(t)
		data, err := codec.Encode(event)
		require.NoError(t, err)

		decoded, err := codec.Decode(data)
		require.NoError(t, err)
		got, ok := decoded.(*trade.DocumentTransitionedEvent)
		require.True(t, ok)
		assert.Equal(t, event.DocumentID, got.DocumentID)
		assert.Equal(t, event.Number, got.Number)
		assert.Equal(t, "PAID", got.From)
		assert.Equal(t, "SHIPPED", got.To)
		assert.Equal(t, "ship", got.Trigger)
		assert.True(t, event.TotalAmount.Equal(got.TotalAmount))
		assert.Equal(t, event.TenantID(), got.TenantID())
	})

	t.Run("reservation events share one payload type", func(t *testing.T) {
		reservation, err := inventory.NewStockReservation(uuid.New(), uuid.New(), 3, "ORD-7", time.Now().Add(time.Hour))
		require.NoError(t, err)
		for _, eventType := range []string{
			inventory.EventTypeStockReserved,
			inventory.EventTypeStockReservationExpired,
		} {
			data, err := codec.Encode(inventory.NewStockReservationEvent(eventType, reservation))
			require.NoError(t, err)
			decoded, err := codec.Decode(data)
			require.NoError(t, err)
			got, ok := decoded.(*inventory.StockReservationEvent)
			require.True(t, ok)
			assert.Equal(t, eventType, got.EventType())
			assert.Equal(t, int64(3), got.Quantity)
			assert.Equal(t, "ORD-7", got.OrderRef)
		}
	})

	t.Run("unknown type and bad payload fail", func(t *testing.T) {
		_, err := codec.Decode([]byte(`{"type":"Nope","payload":{}}`))
		assert.ErrorContains(t, err, "unknown event type")

		_, err = codec.Decode([]byte(`{"type":"DocumentTransitioned","payload":"x"}`))
		assert.Error(t, err)

		_, err = codec.Decode([]byte(`not json`))
		assert.Error(t, err)
	})

	t.Run("registered types", func(t *testing.T) {
		assert.True(t, codec.IsRegistered(trade.EventTypeInvoicePaymentRecorded))
		assert.True(t, codec.IsRegistered(inventory.EventTypeStockAdjusted))
		assert.False(t, codec.IsRegistered("ShipmentCreated"))
	})
}
