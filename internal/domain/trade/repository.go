package trade

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// QuoteRepository defines the interface for quote persistence
type QuoteRepository interface {
	// FindByID finds a quote of a tenant, with its lines
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error)

	// FindByNumber finds a quote by its document number
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Quote, error)

	// FindAll lists quotes of a tenant, optionally narrowed to the given statuses
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...QuoteStatus) ([]Quote, error)

	// FindExpired lists open quotes whose validity ended before now
	FindExpired(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]Quote, error)

	// Save creates the quote or updates it with an optimistic version check,
	// replacing its lines
	Save(ctx context.Context, quote *Quote) error

	// Delete removes a quote and its lines
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Order, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...OrderStatus) ([]Order, error)

	// Save creates or updates the order, replacing its lines and appending new history entries
	Save(ctx context.Context, order *Order) error

	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...InvoiceStatus) ([]Invoice, error)

	// FindBySourceOrder finds the invoice created from an order
	FindBySourceOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*Invoice, error)

	// FindPastDue lists SENT and PARTIALLY_PAID invoices whose due date lies before now
	FindPastDue(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]Invoice, error)

	// Save creates or updates the invoice, replacing its lines and payments
	Save(ctx context.Context, invoice *Invoice) error
}

// DocumentSequence hands out gap-free document counters
type DocumentSequence interface {
	// Next returns the next counter for the tenant, document type and day, starting at 1
	Next(ctx context.Context, tenantID uuid.UUID, docType DocumentType, day time.Time) (int64, error)
}

// AssignNumber gives d its document number if it has none yet
func AssignNumber(ctx context.Context, seq DocumentSequence, docType DocumentType, d *Document, now time.Time) error {
	if d.Number != "" {
		return nil
	}
	n, err := seq.Next(ctx, d.TenantID, docType, now)
	if err != nil {
		return err
	}
	return d.AssignNumber(FormatDocumentNumber(docType, now, n))
}
