package persistence

import (
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sortColumns whitelists the columns a listing may be ordered by. Anything
// outside the list falls back to created_at, so user input never reaches SQL.
type sortColumns map[string]struct{}

func columns(names ...string) sortColumns {
	c := make(sortColumns, len(names))
	for _, n := range names {
		c[n] = struct{}{}
	}
	return c
}

// with returns a copy extended by extra
func (c sortColumns) with(extra ...string) sortColumns {
	out := make(sortColumns, len(c)+len(extra))
	for k := range c {
		out[k] = struct{}{}
	}
	for _, k := range extra {
		out[k] = struct{}{}
	}
	return out
}

// column returns field when whitelisted, otherwise created_at
func (c sortColumns) column(field string) string {
	field = strings.TrimSpace(field)
	if _, ok := c[field]; ok {
		return field
	}
	return "created_at"
}

// orderClause renders "<column> ASC|DESC"; the direction defaults to DESC
func (c sortColumns) orderClause(field, dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return c.column(field) + " ASC"
	}
	return c.column(field) + " DESC"
}

var (
	documentColumns = columns("id", "created_at", "updated_at", "number", "customer_id", "status", "total_amount")
	quoteColumns    = documentColumns.with("expires_at")
	orderColumns    = documentColumns.with("paid_at", "shipped_at", "completed_at")
	invoiceColumns  = documentColumns.with("due_date", "amount_paid")
)

// listDocuments narrows a document query by number search and customer, then
// orders and pages it
func listDocuments(query *gorm.DB, filter shared.Filter, sortable sortColumns) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("number LIKE ?", "%"+search+"%")
	}
	if filter.CustomerID != uuid.Nil {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	query = query.Order(sortable.orderClause(filter.OrderBy, filter.OrderDir))
	if filter.Paged() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}
