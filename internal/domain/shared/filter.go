package shared

import (
	"strings"

	"github.com/google/uuid"
)

// Default listing parameters
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter narrows and pages a document listing
type Filter struct {
	Page       int
	PageSize   int
	OrderBy    string
	OrderDir   string
	Search     string    // Substring of the document number
	CustomerID uuid.UUID // uuid.Nil matches every customer
}

// DefaultFilter returns the first page, newest first
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: DefaultPageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Paged reports whether the filter limits the result to one page
func (f Filter) Paged() bool {
	return f.PageSize > 0
}

// Offset returns the number of rows before the requested page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether a document with the given number and customer passes
// the search and customer criteria
func (f Filter) Matches(number string, customerID uuid.UUID) bool {
	if f.CustomerID != uuid.Nil && f.CustomerID != customerID {
		return false
	}
	search := strings.TrimSpace(f.Search)
	return search == "" || strings.Contains(number, search)
}
