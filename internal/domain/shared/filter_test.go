package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFilter_Paging(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		paged  bool
		offset int
	}{
		{"default", DefaultFilter(), true, 0},
		{"third page", Filter{Page: 3, PageSize: 10}, true, 20},
		{"page zero", Filter{Page: 0, PageSize: 10}, true, 0},
		{"unpaged", Filter{}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.paged, tt.filter.Paged())
			assert.Equal(t, tt.offset, tt.filter.Offset())
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	customer := uuid.New()

	assert.True(t, DefaultFilter().Matches("QUO-20260315-000001", customer))

	f := Filter{CustomerID: customer}
	assert.True(t, f.Matches("ORD-1", customer))
	assert.False(t, f.Matches("ORD-1", uuid.New()))

	f = Filter{Search: " 000042 "}
	assert.True(t, f.Matches("INV-20260315-000042", customer))
	assert.False(t, f.Matches("INV-20260315-000043", customer))
}

func TestTenantAggregate(t *testing.T) {
	tenant, user := uuid.New(), uuid.New()

	agg := NewTenantAggregate(tenant, user)
	assert.Equal(t, 1, agg.Version)
	assert.True(t, agg.OwnedBy(tenant))
	assert.False(t, agg.OwnedBy(uuid.New()))
	assert.Equal(t, user, *agg.CreatedBy)
	assert.Equal(t, agg.CreatedAt, agg.UpdatedAt)

	agg.IncrementVersion()
	assert.Equal(t, 2, agg.Version)

	later := agg.CreatedAt.Add(1)
	agg.Touch(later)
	assert.Equal(t, later, agg.UpdatedAt)

	assert.Nil(t, NewTenantAggregate(tenant, uuid.Nil).CreatedBy)
}

func TestEventHeader(t *testing.T) {
	tenant, agg := uuid.New(), uuid.New()
	h := NewEventHeader("Thing", "Widget", agg, tenant)

	assert.NotEqual(t, uuid.Nil, h.EventID())
	assert.Equal(t, "Thing", h.EventType())
	assert.Equal(t, "Widget", h.AggregateType())
	assert.Equal(t, agg, h.AggregateID())
	assert.Equal(t, tenant, h.TenantID())
	assert.False(t, h.OccurredAt().IsZero())
	assert.Equal(t, 1, h.SchemaVersion())

	h.Version = 0
	assert.Equal(t, 1, h.SchemaVersion())
}
