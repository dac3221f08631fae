package persistence

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// saveVersioned inserts model when no row with id exists, otherwise updates every
// column under an optimistic check on the stored version. agg must point into model.
// It reports whether the row was updated.
func saveVersioned(tx *gorm.DB, model any, agg *models.VersionedModel) (bool, error) {
	var count int64
	if err := tx.Model(model).Where("id = ?", agg.ID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, tx.Create(model).Error
	}

	expected := agg.Version
	agg.Version = expected + 1
	result := tx.Model(model).
		Where("id = ? AND version = ?", agg.ID, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, shared.ErrConcurrencyConflict
	}
	return true, nil
}

// replaceItems rewrites the lines owned by a document
func replaceItems(tx *gorm.DB, docType trade.DocumentType, documentID uuid.UUID, items []trade.LineItem) error {
	if err := tx.Where("document_type = ? AND document_id = ?", docType, documentID).
		Delete(&models.DocumentItemModel{}).Error; err != nil {
		return fmt.Errorf("failed to clear %s lines: %w", docType, err)
	}
	if len(items) == 0 {
		return nil
	}
	rows := models.DocumentItemModelsFromDomain(docType, documentID, items)
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to write %s lines: %w", docType, err)
	}
	return nil
}

// loadItems returns the lines of the given documents keyed by document ID
func loadItems(ctx context.Context, db *gorm.DB, docType trade.DocumentType, ids []uuid.UUID) (map[uuid.UUID][]models.DocumentItemModel, error) {
	out := make(map[uuid.UUID][]models.DocumentItemModel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.DocumentItemModel
	if err := db.WithContext(ctx).
		Where("document_type = ? AND document_id IN ?", docType, ids).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DocumentID] = append(out[row.DocumentID], row)
	}
	return out, nil
}

func deleteItems(tx *gorm.DB, docType trade.DocumentType, documentID uuid.UUID) error {
	return tx.Where("document_type = ? AND document_id = ?", docType, documentID).
		Delete(&models.DocumentItemModel{}).Error
}
