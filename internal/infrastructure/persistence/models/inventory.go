package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/google/uuid"
)

// StockMovementModel is the persistence model for an append-only ledger entry.
type StockMovementModel struct {
	ID        uuid.UUID                `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID                `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID                `gorm:"type:uuid;not null;index"`
	Quantity  int64                    `gorm:"not null"`
	Reason    inventory.MovementReason `gorm:"type:varchar(30);not null"`
	Reference string                   `gorm:"type:varchar(100);index"`
	Notes     string                   `gorm:"type:text"`
	CreatedAt time.Time                `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:        m.ID,
		TenantID:  m.TenantID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Reason:    m.Reason,
		Reference: m.Reference,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain StockMovement.
func (m *StockMovementModel) FromDomain(mv *inventory.StockMovement) {
	m.ID = mv.ID
	m.TenantID = mv.TenantID
	m.ProductID = mv.ProductID
	m.Quantity = mv.Quantity
	m.Reason = mv.Reason
	m.Reference = mv.Reference
	m.Notes = mv.Notes
	m.CreatedAt = mv.CreatedAt
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(mv *inventory.StockMovement) *StockMovementModel {
	m := &StockMovementModel{}
	m.FromDomain(mv)
	return m
}

// StockReservationModel is the persistence model for a stock hold taken by an order.
type StockReservationModel struct {
	EntityModel
	TenantID    uuid.UUID                   `gorm:"type:uuid;not null;index:idx_reservation_order,priority:1"`
	ProductID   uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Quantity    int64                       `gorm:"not null"`
	OrderRef    string                      `gorm:"type:varchar(50);not null;index:idx_reservation_order,priority:2"`
	Status      inventory.ReservationStatus `gorm:"type:varchar(20);not null;index:idx_reservation_status_expiry,priority:1"`
	ExpiresAt   time.Time                   `gorm:"not null;index:idx_reservation_status_expiry,priority:2"`
	ConvertedAt *time.Time
	ReleasedAt  *time.Time
}

// TableName returns the table name for GORM
func (StockReservationModel) TableName() string {
	return "stock_reservations"
}

// ToDomain converts the persistence model to a domain StockReservation.
func (m *StockReservationModel) ToDomain() *inventory.StockReservation {
	return &inventory.StockReservation{
		Entity:      m.Entity(),
		TenantID:    m.TenantID,
		ProductID:   m.ProductID,
		Quantity:    m.Quantity,
		OrderRef:    m.OrderRef,
		Status:      m.Status,
		ExpiresAt:   m.ExpiresAt,
		ConvertedAt: m.ConvertedAt,
		ReleasedAt:  m.ReleasedAt,
	}
}

// FromDomain populates the persistence model from a domain StockReservation.
func (m *StockReservationModel) FromDomain(r *inventory.StockReservation) {
	m.SetEntity(r.Entity)
	m.TenantID = r.TenantID
	m.ProductID = r.ProductID
	m.Quantity = r.Quantity
	m.OrderRef = r.OrderRef
	m.Status = r.Status
	m.ExpiresAt = r.ExpiresAt
	m.ConvertedAt = r.ConvertedAt
	m.ReleasedAt = r.ReleasedAt
}

// StockReservationModelFromDomain creates a new persistence model from a domain StockReservation.
func StockReservationModelFromDomain(r *inventory.StockReservation) *StockReservationModel {
	m := &StockReservationModel{}
	m.FromDomain(r)
	return m
}
