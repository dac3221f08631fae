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

// GormQuoteRepository implements trade.QuoteRepository using GORM
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// FindByID finds a quote of a tenant, with its lines
func (r *GormQuoteRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*trade.Quote, error) {
	return r.findOne(ctx, id, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByNumber finds a quote by its document number
func (r *GormQuoteRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*trade.Quote, error) {
	return r.findOne(ctx, number, "tenant_id = ? AND number = ?", tenantID, number)
}

// FindAll lists quotes of a tenant, optionally narrowed to the given statuses
func (r *GormQuoteRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.QuoteStatus) ([]trade.Quote, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	return r.find(ctx, listDocuments(query, filter, quoteColumns))
}

// FindExpired lists open quotes whose validity ended before now
func (r *GormQuoteRepository) FindExpired(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]trade.Quote, error) {
	open := []trade.QuoteStatus{trade.QuoteStatusDraft, trade.QuoteStatusSent, trade.QuoteStatusPending}
	return r.find(ctx, r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND expires_at < ?", tenantID, open, now).
		Order("expires_at ASC"))
}

// Save creates the quote or updates it under an optimistic version check, replacing its lines
func (r *GormQuoteRepository) Save(ctx context.Context, quote *trade.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	updated, err := saveVersioned(r.db.WithContext(ctx), model, &model.VersionedModel)
	if err != nil {
		return err
	}
	if err := replaceItems(r.db.WithContext(ctx), trade.DocumentTypeQuote, quote.ID, quote.Items); err != nil {
		return err
	}
	if updated {
		quote.IncrementVersion()
	}
	return nil
}

// Delete removes a quote and its lines
func (r *GormQuoteRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	result := db.Delete(&models.QuoteModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("quote", id)
	}
	return deleteItems(db, trade.DocumentTypeQuote, id)
}

func (r *GormQuoteRepository) findOne(ctx context.Context, key any, query string, args ...any) (*trade.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("quote", key)
		}
		return nil, err
	}
	items, err := loadItems(ctx, r.db, trade.DocumentTypeQuote, []uuid.UUID{model.ID})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(items[model.ID]), nil
}

func (r *GormQuoteRepository) find(ctx context.Context, query *gorm.DB) ([]trade.Quote, error) {
	var rows []models.QuoteModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	items, err := loadItems(ctx, r.db, trade.DocumentTypeQuote, ids)
	if err != nil {
		return nil, err
	}
	quotes := make([]trade.Quote, len(rows))
	for i := range rows {
		quotes[i] = *rows[i].ToDomain(items[rows[i].ID])
	}
	return quotes, nil
}

// Ensure GormQuoteRepository implements trade.QuoteRepository
var _ trade.QuoteRepository = (*GormQuoteRepository)(nil)
