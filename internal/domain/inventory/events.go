package inventory

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeStockReservation = "StockReservation"
	AggregateTypeProductStock     = "ProductStock"
)

// Event type constants
const (
	EventTypeStockReserved             = "StockReserved"
	EventTypeStockReservationReleased  = "StockReservationReleased"
	EventTypeStockReservationExpired   = "StockReservationExpired"
	EventTypeStockReservationConverted = "StockReservationConverted"
	EventTypeStockAdjusted             = "StockAdjusted"
)

// StockReservationEvent is raised whenever a reservation is created or resolved
type StockReservationEvent struct {
	shared.EventHeader
	ReservationID uuid.UUID         `json:"reservation_id"`
	ProductID     uuid.UUID         `json:"product_id"`
	Quantity      int64             `json:"quantity"`
	OrderRef      string            `json:"order_ref"`
	Status        ReservationStatus `json:"status"`
}

// NewStockReservationEvent creates an event describing the reservation's current status
func NewStockReservationEvent(eventType string, r *StockReservation) *StockReservationEvent {
	return &StockReservationEvent{
		EventHeader:   shared.NewEventHeader(eventType, AggregateTypeStockReservation, r.ID, r.TenantID),
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		Quantity:      r.Quantity,
		OrderRef:      r.OrderRef,
		Status:        r.Status,
	}
}

// StockAdjustedEvent is raised when the stock counter of a product changes through the ledger
type StockAdjustedEvent struct {
	shared.EventHeader
	ProductID uuid.UUID      `json:"product_id"`
	Delta     int64          `json:"delta"`
	NewLevel  int64          `json:"new_level"`
	Reason    MovementReason `json:"reason"`
	Reference string         `json:"reference"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(tenantID, productID uuid.UUID, delta, newLevel int64, reason MovementReason, reference string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		EventHeader: shared.NewEventHeader(EventTypeStockAdjusted, AggregateTypeProductStock, productID, tenantID),
		ProductID:   productID,
		Delta:       delta,
		NewLevel:    newLevel,
		Reason:      reason,
		Reference:   reference,
	}
}
