package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockReservationRepository implements inventory.StockReservationRepository using GORM
type GormStockReservationRepository struct {
	db *gorm.DB
}

// NewGormStockReservationRepository creates a new GormStockReservationRepository
func NewGormStockReservationRepository(db *gorm.DB) *GormStockReservationRepository {
	return &GormStockReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormStockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockReservation, error) {
	var model models.StockReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("stock reservation", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderRef returns every reservation of an order, oldest first
func (r *GormStockReservationRepository) FindByOrderRef(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]inventory.StockReservation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_ref = ?", tenantID, orderRef).
		Order("created_at ASC, id ASC"))
}

// FindOutstanding returns the reservations of an order still holding stock
func (r *GormStockReservationRepository) FindOutstanding(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]inventory.StockReservation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_ref = ? AND status = ?", tenantID, orderRef, inventory.ReservationReserved).
		Order("created_at ASC, id ASC"))
}

// FindExpired returns reserved reservations whose expiry is before now, oldest expiry first
func (r *GormStockReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]inventory.StockReservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", inventory.ReservationReserved, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// Create inserts a new reservation
func (r *GormStockReservationRepository) Create(ctx context.Context, reservation *inventory.StockReservation) error {
	return r.db.WithContext(ctx).Create(models.StockReservationModelFromDomain(reservation)).Error
}

// UpdateStatusIfReserved writes the resolved state only while the stored row is still reserved.
// Of two concurrent resolutions exactly one succeeds; the other gets shared.ErrReservationConflict.
func (r *GormStockReservationRepository) UpdateStatusIfReserved(ctx context.Context, reservation *inventory.StockReservation) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockReservationModel{}).
		Where("id = ? AND status = ?", reservation.ID, inventory.ReservationReserved).
		Updates(map[string]interface{}{
			"status":       reservation.Status,
			"converted_at": reservation.ConvertedAt,
			"released_at":  reservation.ReleasedAt,
			"updated_at":   reservation.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrReservationConflict
	}
	return nil
}

func (r *GormStockReservationRepository) find(query *gorm.DB) ([]inventory.StockReservation, error) {
	var rows []models.StockReservationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	reservations := make([]inventory.StockReservation, len(rows))
	for i := range rows {
		reservations[i] = *rows[i].ToDomain()
	}
	return reservations, nil
}

// Ensure GormStockReservationRepository implements inventory.StockReservationRepository
var _ inventory.StockReservationRepository = (*GormStockReservationRepository)(nil)
