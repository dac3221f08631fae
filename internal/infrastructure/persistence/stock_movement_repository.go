package persistence

import (
	"context"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements the append-only stock ledger using GORM.
// It has no update or delete methods.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Append persists a new movement
func (r *GormStockMovementRepository) Append(ctx context.Context, movement *inventory.StockMovement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(movement)).Error
}

// FindByProduct returns the movements of a product, oldest first
func (r *GormStockMovementRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]inventory.StockMovement, error) {
	return r.find(r.db.WithContext(ctx).Where("product_id = ?", productID))
}

// FindByReference returns the movements of a tenant recorded with the given reference
func (r *GormStockMovementRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) ([]inventory.StockMovement, error) {
	return r.find(r.db.WithContext(ctx).Where("tenant_id = ? AND reference = ?", tenantID, reference))
}

// SumByProduct returns the net quantity of a product's movements
func (r *GormStockMovementRepository) SumByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

func (r *GormStockMovementRepository) find(query *gorm.DB) ([]inventory.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	movements := make([]inventory.StockMovement, len(rows))
	for i := range rows {
		movements[i] = *rows[i].ToDomain()
	}
	return movements, nil
}

// Ensure GormStockMovementRepository implements inventory.StockMovementRepository
var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)
