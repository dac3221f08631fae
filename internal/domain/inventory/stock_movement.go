package inventory

import (
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementReason classifies a ledger movement
type MovementReason string

const (
	ReasonSale               MovementReason = "sale"
	ReasonReturn             MovementReason = "return"
	ReasonRestock            MovementReason = "restock"
	ReasonAdjustment         MovementReason = "adjustment"
	ReasonDamage             MovementReason = "damage"
	ReasonLoss               MovementReason = "loss"
	ReasonReservation        MovementReason = "reservation"
	ReasonReservationRelease MovementReason = "reservation_release"
)

// String returns the string representation of MovementReason
func (r MovementReason) String() string {
	return string(r)
}

// IsValid returns true if the reason is a known movement reason
func (r MovementReason) IsValid() bool {
	switch r {
	case ReasonSale, ReasonReturn, ReasonRestock, ReasonAdjustment,
		ReasonDamage, ReasonLoss, ReasonReservation, ReasonReservationRelease:
		return true
	}
	return false
}

// IsInbound returns true for reasons that bring units back into sellable stock
func (r MovementReason) IsInbound() bool {
	switch r {
	case ReasonReturn, ReasonRestock, ReasonReservationRelease:
		return true
	}
	return false
}

// AllMovementReasons returns every valid reason
func AllMovementReasons() []MovementReason {
	return []MovementReason{
		ReasonSale, ReasonReturn, ReasonRestock, ReasonAdjustment,
		ReasonDamage, ReasonLoss, ReasonReservation, ReasonReservationRelease,
	}
}

// StockMovement is an immutable ledger entry recording one signed change
// to a product's stock. Movements are appended and never edited or removed.
type StockMovement struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int64 // Signed delta
	Reason    MovementReason
	Reference string
	Notes     string
	CreatedAt time.Time
}

// NewStockMovement creates a validated movement
func NewStockMovement(tenantID, productID uuid.UUID, delta int64, reason MovementReason, reference string) (*StockMovement, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product_id", "Product is required")
	}
	if delta == 0 {
		return nil, shared.NewValidationError("quantity", "Movement quantity cannot be zero")
	}
	if !reason.IsValid() {
		return nil, shared.NewValidationError("reason", "Unknown movement reason: "+string(reason))
	}
	if len(reference) > 100 {
		return nil, shared.NewValidationError("reference", "Reference cannot exceed 100 characters")
	}

	return &StockMovement{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ProductID: productID,
		Quantity:  delta,
		Reason:    reason,
		Reference: reference,
		CreatedAt: time.Now(),
	}, nil
}

// WithNotes returns a copy of the movement carrying notes. Only used before the movement is appended.
func (m StockMovement) WithNotes(notes string) *StockMovement {
	m.Notes = notes
	return &m
}

// IsIncrease returns true if the movement adds units
func (m *StockMovement) IsIncrease() bool {
	return m.Quantity > 0
}

// SumMovements returns the net quantity of the given movements
func SumMovements(movements []StockMovement) int64 {
	var total int64
	for _, m := range movements {
		total += m.Quantity
	}
	return total
}
