package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// EntityModel holds the id and timestamp columns every table carries
type EntityModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Entity returns the columns as a domain entity
func (m *EntityModel) Entity() shared.Entity {
	return shared.Entity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// SetEntity copies a domain entity into the columns
func (m *EntityModel) SetEntity(e shared.Entity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// VersionedModel adds the optimistic-locking version column
type VersionedModel struct {
	EntityModel
	Version int `gorm:"not null;default:1"`
}

// TenantModel is the column set of a tenant-owned aggregate table
type TenantModel struct {
	VersionedModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"`
}

// SetTenantAggregate copies a domain aggregate into the columns
func (m *TenantModel) SetTenantAggregate(t shared.TenantAggregate) {
	m.SetEntity(t.Entity)
	m.Version = t.Version
	m.TenantID = t.TenantID
	m.CreatedBy = t.CreatedBy
}

// TenantAggregate returns the columns as a domain aggregate
func (m *TenantModel) TenantAggregate() shared.TenantAggregate {
	return shared.TenantAggregate{
		Aggregate: shared.Aggregate{Entity: m.Entity(), Version: m.Version},
		TenantID:  m.TenantID,
		CreatedBy: m.CreatedBy,
	}
}
