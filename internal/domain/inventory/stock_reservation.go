package inventory

import (
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultReservationTTL is how long a reservation holds stock when no TTL is configured
const DefaultReservationTTL = 24 * time.Hour

// ReservationStatus represents the lifecycle status of a stock reservation
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationConverted ReservationStatus = "converted"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// String returns the string representation of ReservationStatus
func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationReserved, ReservationConverted, ReservationReleased, ReservationExpired:
		return true
	}
	return false
}

// IsTerminal returns true once the reservation has been resolved
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationConverted || s == ReservationReleased || s == ReservationExpired
}

// StockReservation is a time-bounded hold against a product's stock for one order.
// Its quantity is already subtracted from the product's stock counter while reserved.
type StockReservation struct {
	shared.Entity
	TenantID    uuid.UUID
	ProductID   uuid.UUID
	Quantity    int64
	OrderRef    string // Order number the hold belongs to
	Status      ReservationStatus
	ExpiresAt   time.Time
	ConvertedAt *time.Time
	ReleasedAt  *time.Time // Set on release and on expiry
}

// NewStockReservation creates a reservation in the reserved status
func NewStockReservation(tenantID, productID uuid.UUID, quantity int64, orderRef string, expiresAt time.Time) (*StockReservation, error) {
	v := &shared.ValidationError{}
	if productID == uuid.Nil {
		v.Add("product_id", "Product is required")
	}
	if quantity <= 0 {
		v.Add("quantity", "Reservation quantity must be positive")
	}
	if orderRef == "" {
		v.Add("order_ref", "Order reference is required")
	}
	if expiresAt.IsZero() {
		v.Add("expires_at", "Expiry is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return &StockReservation{
		Entity:    shared.NewEntity(),
		TenantID:  tenantID,
		ProductID: productID,
		Quantity:  quantity,
		OrderRef:  orderRef,
		Status:    ReservationReserved,
		ExpiresAt: expiresAt,
	}, nil
}

// IsReserved returns true while the reservation still holds stock
func (r *StockReservation) IsReserved() bool {
	return r.Status == ReservationReserved
}

// IsExpiredAt returns true if the hold has passed its expiry at the given instant
func (r *StockReservation) IsExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// TimeUntilExpiry returns the duration until expiry; negative once expired
func (r *StockReservation) TimeUntilExpiry() time.Duration {
	return time.Until(r.ExpiresAt)
}

// Convert closes the reservation after the goods have shipped
func (r *StockReservation) Convert(now time.Time) error {
	if err := r.ensureReserved("convert"); err != nil {
		return err
	}
	r.Status = ReservationConverted
	r.ConvertedAt = &now
	r.Touch(now)
	return nil
}

// Release closes the reservation and returns its quantity to the caller for restoring stock
func (r *StockReservation) Release(now time.Time) error {
	if err := r.ensureReserved("release"); err != nil {
		return err
	}
	r.Status = ReservationReleased
	r.ReleasedAt = &now
	r.Touch(now)
	return nil
}

// Expire closes a reservation whose expiry has passed
func (r *StockReservation) Expire(now time.Time) error {
	if err := r.ensureReserved("expire"); err != nil {
		return err
	}
	if !r.IsExpiredAt(now) {
		return shared.NewValidationError("expires_at", "Reservation has not expired yet")
	}
	r.Status = ReservationExpired
	r.ReleasedAt = &now
	r.Touch(now)
	return nil
}

func (r *StockReservation) ensureReserved(operation string) error {
	if r.Status != ReservationReserved {
		return &shared.ReservationConflictError{
			ReservationID: r.ID,
			Status:        string(r.Status),
			Operation:     operation,
		}
	}
	return nil
}
