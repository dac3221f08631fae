package inventory

import (
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/google/uuid"
)

// StockLevelResponse represents the stock position of a product
type StockLevelResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	VerticalTag string    `json:"vertical_tag"`
	Strategy    string    `json:"strategy"`
	Tracked     bool      `json:"tracked"`
	Stock       int64     `json:"stock"`
	Level       int64     `json:"level"`
}

// MovementResponse represents a ledger movement in API responses
type MovementResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReservationResponse represents a stock reservation in API responses
type ReservationResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	Quantity    int64      `json:"quantity"`
	OrderRef    string     `json:"order_ref"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

// AdjustStockRequest represents a manual stock correction
type AdjustStockRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"`
}

// ReturnStockRequest puts units back through the product's stock strategy
type ReturnStockRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"`
}

func toMovementResponse(m inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:        m.ID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Reason:    m.Reason.String(),
		Reference: m.Reference,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

// ToReservationResponse converts a reservation for API output
func ToReservationResponse(r inventory.StockReservation) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID,
		ProductID:   r.ProductID,
		Quantity:    r.Quantity,
		OrderRef:    r.OrderRef,
		Status:      r.Status.String(),
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		ConvertedAt: r.ConvertedAt,
		ReleasedAt:  r.ReleasedAt,
	}
}

func toStockLevelResponse(p *catalog.Product, strategyName string, level int64) StockLevelResponse {
	return StockLevelResponse{
		ProductID:   p.ID,
		Code:        p.Code,
		Name:        p.Name,
		VerticalTag: p.VerticalTag,
		Strategy:    strategyName,
		Tracked:     p.IsStockTracked(),
		Stock:       p.Stock,
		Level:       level,
	}
}
