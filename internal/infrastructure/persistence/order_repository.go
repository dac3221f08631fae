package persistence

import (
	"context"
	"errors"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements trade.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order of a tenant with its lines and status history
func (r *GormOrderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*trade.Order, error) {
	return r.findOne(ctx, id, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByNumber finds an order by its document number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*trade.Order, error) {
	return r.findOne(ctx, number, "tenant_id = ? AND number = ?", tenantID, number)
}

// FindAll lists orders of a tenant, optionally narrowed to the given statuses
func (r *GormOrderRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.OrderStatus) ([]trade.Order, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var rows []models.OrderModel
	if err := listDocuments(query, filter, orderColumns).Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	items, err := loadItems(ctx, r.db, trade.DocumentTypeOrder, ids)
	if err != nil {
		return nil, err
	}
	history, err := r.loadHistory(ctx, ids)
	if err != nil {
		return nil, err
	}
	orders := make([]trade.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain(items[rows[i].ID], history[rows[i].ID])
	}
	return orders, nil
}

// Save creates or updates the order under an optimistic version check.
// Lines are replaced; history entries are append-only and never rewritten.
func (r *GormOrderRepository) Save(ctx context.Context, order *trade.Order) error {
	db := r.db.WithContext(ctx)
	model := models.OrderModelFromDomain(order)
	updated, err := saveVersioned(db, model, &model.VersionedModel)
	if err != nil {
		return err
	}
	if err := replaceItems(db, trade.DocumentTypeOrder, order.ID, order.Items); err != nil {
		return err
	}
	if len(order.History) > 0 {
		entries := models.OrderStatusChangeModelsFromDomain(order.ID, order.History)
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entries).Error; err != nil {
			return err
		}
	}
	if updated {
		order.IncrementVersion()
	}
	return nil
}

// Delete removes an order, its lines and its history
func (r *GormOrderRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	result := db.Delete(&models.OrderModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("order", id)
	}
	if err := db.Where("order_id = ?", id).Delete(&models.OrderStatusChangeModel{}).Error; err != nil {
		return err
	}
	return deleteItems(db, trade.DocumentTypeOrder, id)
}

func (r *GormOrderRepository) findOne(ctx context.Context, key any, query string, args ...any) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("order", key)
		}
		return nil, err
	}
	ids := []uuid.UUID{model.ID}
	items, err := loadItems(ctx, r.db, trade.DocumentTypeOrder, ids)
	if err != nil {
		return nil, err
	}
	history, err := r.loadHistory(ctx, ids)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(items[model.ID], history[model.ID]), nil
}

func (r *GormOrderRepository) loadHistory(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.OrderStatusChangeModel, error) {
	out := make(map[uuid.UUID][]models.OrderStatusChangeModel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.OrderStatusChangeModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", ids).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = append(out[row.OrderID], row)
	}
	return out, nil
}

// Ensure GormOrderRepository implements trade.OrderRepository
var _ trade.OrderRepository = (*GormOrderRepository)(nil)
