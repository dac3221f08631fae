package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements trade.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice of a tenant with its lines and payments
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*trade.Invoice, error) {
	return r.findOne(ctx, id, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByNumber finds an invoice by its document number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*trade.Invoice, error) {
	return r.findOne(ctx, number, "tenant_id = ? AND number = ?", tenantID, number)
}

// FindBySourceOrder finds the invoice created from an order
func (r *GormInvoiceRepository) FindBySourceOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*trade.Invoice, error) {
	return r.findOne(ctx, orderID, "tenant_id = ? AND source_order_id = ?", tenantID, orderID)
}

// FindAll lists invoices of a tenant, optionally narrowed to the given statuses
func (r *GormInvoiceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.InvoiceStatus) ([]trade.Invoice, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	return r.find(ctx, listDocuments(query, filter, invoiceColumns))
}

// FindPastDue lists SENT and PARTIALLY_PAID invoices whose due date lies before now
func (r *GormInvoiceRepository) FindPastDue(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]trade.Invoice, error) {
	open := []trade.InvoiceStatus{trade.InvoiceStatusSent, trade.InvoiceStatusPartiallyPaid}
	return r.find(ctx, r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND due_date < ?", tenantID, open, now).
		Order("due_date ASC"))
}

// Save creates or updates the invoice under an optimistic version check, replacing its lines and payments
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *trade.Invoice) error {
	db := r.db.WithContext(ctx)
	model := models.InvoiceModelFromDomain(invoice)
	updated, err := saveVersioned(db, model, &model.VersionedModel)
	if err != nil {
		return err
	}
	if err := replaceItems(db, trade.DocumentTypeInvoice, invoice.ID, invoice.Items); err != nil {
		return err
	}
	if err := db.Where("invoice_id = ?", invoice.ID).Delete(&models.PaymentModel{}).Error; err != nil {
		return err
	}
	if len(invoice.Payments) > 0 {
		payments := models.PaymentModelsFromDomain(invoice.ID, invoice.Payments)
		if err := db.Create(&payments).Error; err != nil {
			return err
		}
	}
	if updated {
		invoice.IncrementVersion()
	}
	return nil
}

func (r *GormInvoiceRepository) findOne(ctx context.Context, key any, query string, args ...any) (*trade.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("invoice", key)
		}
		return nil, err
	}
	invoices, err := r.hydrate(ctx, []models.InvoiceModel{model})
	if err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

func (r *GormInvoiceRepository) find(ctx context.Context, query *gorm.DB) ([]trade.Invoice, error) {
	var rows []models.InvoiceModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

// hydrate loads the lines and payments of rows
func (r *GormInvoiceRepository) hydrate(ctx context.Context, rows []models.InvoiceModel) ([]trade.Invoice, error) {
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	items, err := loadItems(ctx, r.db, trade.DocumentTypeInvoice, ids)
	if err != nil {
		return nil, err
	}

	payments := make(map[uuid.UUID][]models.PaymentModel, len(ids))
	if len(ids) > 0 {
		var paymentRows []models.PaymentModel
		if err := r.db.WithContext(ctx).
			Where("invoice_id IN ?", ids).
			Order("paid_at ASC").
			Find(&paymentRows).Error; err != nil {
			return nil, err
		}
		for _, p := range paymentRows {
			payments[p.InvoiceID] = append(payments[p.InvoiceID], p)
		}
	}

	invoices := make([]trade.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain(items[rows[i].ID], payments[rows[i].ID])
	}
	return invoices, nil
}

// Ensure GormInvoiceRepository implements trade.InvoiceRepository
var _ trade.InvoiceRepository = (*GormInvoiceRepository)(nil)
