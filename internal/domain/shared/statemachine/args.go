package statemachine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Args carries caller context into guards and hooks
type Args map[string]any

// String returns the string value for key, or "" when absent
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Decimal returns the decimal value for key, or zero when absent
func (a Args) Decimal(key string) decimal.Decimal {
	if v, ok := a[key].(decimal.Decimal); ok {
		return v
	}
	return decimal.Zero
}

// UUID returns the uuid value for key, or uuid.Nil when absent
func (a Args) UUID(key string) uuid.UUID {
	if v, ok := a[key].(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// Time returns the time value for key, or the zero time when absent
func (a Args) Time(key string) time.Time {
	if v, ok := a[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
