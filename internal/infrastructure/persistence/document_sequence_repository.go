package persistence

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentSequence implements trade.DocumentSequence with one counter row per
// tenant, document type and day. The increment takes the row lock, so concurrent
// transactions numbering the same day are serialized until commit.
type GormDocumentSequence struct {
	db *gorm.DB
}

// NewGormDocumentSequence creates a new GormDocumentSequence
func NewGormDocumentSequence(db *gorm.DB) *GormDocumentSequence {
	return &GormDocumentSequence{db: db}
}

// Next returns the next counter for the tenant, document type and day, starting at 1
func (s *GormDocumentSequence) Next(ctx context.Context, tenantID uuid.UUID, docType trade.DocumentType, day time.Time) (int64, error) {
	db := s.db.WithContext(ctx)
	row := models.DocumentSequenceModel{
		TenantID:     tenantID,
		DocumentType: docType,
		Day:          day.Format("20060102"),
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return 0, err
	}

	if err := db.Model(&models.DocumentSequenceModel{}).
		Where("tenant_id = ? AND document_type = ? AND day = ?", row.TenantID, row.DocumentType, row.Day).
		Update("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
		return 0, err
	}

	var current models.DocumentSequenceModel
	if err := db.Where("tenant_id = ? AND document_type = ? AND day = ?", row.TenantID, row.DocumentType, row.Day).
		First(&current).Error; err != nil {
		return 0, err
	}
	return current.LastValue, nil
}

// Ensure GormDocumentSequence implements trade.DocumentSequence
var _ trade.DocumentSequence = (*GormDocumentSequence)(nil)
