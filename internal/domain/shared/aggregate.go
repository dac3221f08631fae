package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity carries identity and timestamps
type Entity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity creates an entity with a fresh id, created now
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch records a modification at the given instant
func (e *Entity) Touch(at time.Time) {
	e.UpdatedAt = at
}

// Aggregate is an entity saved under optimistic locking. A save succeeds only
// when the stored version still equals Version.
type Aggregate struct {
	Entity
	Version int
}

// IncrementVersion advances the version after a successful save
func (a *Aggregate) IncrementVersion() {
	a.Version++
}

// TenantAggregate is an aggregate owned by one tenant
type TenantAggregate struct {
	Aggregate
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
}

// NewTenantAggregate starts a version 1 aggregate for tenantID. A nil
// createdBy leaves the creator unset.
func NewTenantAggregate(tenantID, createdBy uuid.UUID) TenantAggregate {
	t := TenantAggregate{
		Aggregate: Aggregate{Entity: NewEntity(), Version: 1},
		TenantID:  tenantID,
	}
	if createdBy != uuid.Nil {
		t.CreatedBy = &createdBy
	}
	return t
}

// OwnedBy reports whether the aggregate belongs to tenantID
func (t *TenantAggregate) OwnedBy(tenantID uuid.UUID) bool {
	return t.TenantID == tenantID
}
