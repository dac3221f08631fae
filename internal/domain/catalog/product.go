package catalog

import (
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Vertical tags select the stock strategy applied to a product
const (
	VerticalRetail     = "retail"
	VerticalAutomotive = "auto"
	VerticalRealEstate = "immo"
)

// Product is the slice of a catalog product the stock core depends on.
// The catalog owns products; the stock ledger and strategies only mutate Stock.
type Product struct {
	shared.TenantAggregate
	Code               string
	Name               string
	Stock              int64 // Sellable units, already net of open reservations
	ManagedByInventory bool
	VerticalTag        string
}

// NewProduct creates a product. Used by catalog seeding and tests.
func NewProduct(tenantID uuid.UUID, code, name, verticalTag string, stock int64, managed bool) (*Product, error) {
	if err := validateProductCode(code); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if stock < 0 {
		return nil, shared.NewDomainError("INVALID_STOCK", "Initial stock cannot be negative")
	}

	return &Product{
		TenantAggregate:    shared.NewTenantAggregate(tenantID, uuid.Nil),
		Code:               strings.ToUpper(code),
		Name:               name,
		Stock:              stock,
		ManagedByInventory: managed,
		VerticalTag:        strings.ToLower(strings.TrimSpace(verticalTag)),
	}, nil
}

// IsStockTracked reports whether stock operations apply to this product
func (p *Product) IsStockTracked() bool {
	return p.ManagedByInventory
}

// HasStock reports whether quantity units can be sold right now
func (p *Product) HasStock(quantity int64) bool {
	return p.Stock >= quantity
}

// validateProductCode validates the product code
func validateProductCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot exceed 50 characters")
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_CODE", "Product code can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

// validateProductName validates the product name
func validateProductName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}
