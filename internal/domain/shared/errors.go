package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that wrapped or rebuilt errors
// still compare equal to the package sentinels.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrValidation          = NewDomainError("VALIDATION_ERROR", "Validation failed")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrIllegalTransition   = NewDomainError("ILLEGAL_TRANSITION", "Transition not allowed from current state")
	ErrGuardRejected       = NewDomainError("GUARD_REJECTED", "Transition guard rejected the request")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrReservationConflict = NewDomainError("RESERVATION_CONFLICT", "Reservation is no longer reserved")
)

// ValidationError reports bad input detected before any mutation.
// Fields maps a field name to its messages; "__all__" carries non-field errors.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{Fields: make(map[string][]string)}
	return v.Add(field, message)
}

// Add appends a message for the given field and returns the receiver
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

// HasErrors reports whether any field message was recorded
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns nil when no message was recorded.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Code returns the error code
func (e *ValidationError) Code() string { return ErrValidation.Code }

// Unwrap allows errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an unknown entity id
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a not found error for the given resource
func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Code returns the error code
func (e *NotFoundError) Code() string { return ErrNotFound.Code }

// Unwrap allows errors.Is(err, ErrNotFound)
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IllegalTransitionError reports a trigger that is not declared from the current state
type IllegalTransitionError struct {
	Machine string
	State   string
	Trigger string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: trigger '%s' not valid from state '%s'", e.Machine, e.Trigger, e.State)
}

// Code returns the error code
func (e *IllegalTransitionError) Code() string { return ErrIllegalTransition.Code }

// Unwrap allows errors.Is(err, ErrIllegalTransition)
func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// GuardRejectedError reports a transition whose guard returned false
type GuardRejectedError struct {
	Machine string
	State   string
	Trigger string
	Guard   string
}

func (e *GuardRejectedError) Error() string {
	return fmt.Sprintf("%s: transition '%s' from '%s' rejected by guard '%s'", e.Machine, e.Trigger, e.State, e.Guard)
}

// Code returns the error code
func (e *GuardRejectedError) Code() string { return ErrGuardRejected.Code }

// Unwrap allows errors.Is(err, ErrGuardRejected)
func (e *GuardRejectedError) Unwrap() error { return ErrGuardRejected }

// StockShortage describes one product that could not be satisfied
type StockShortage struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Requested   int64     `json:"requested"`
	Available   int64     `json:"available"`
}

// InsufficientStockError reports the items that lacked stock
type InsufficientStockError struct {
	Shortages []StockShortage
}

// NewInsufficientStockError creates an error for a single product
func NewInsufficientStockError(productID uuid.UUID, requested, available int64) *InsufficientStockError {
	return &InsufficientStockError{Shortages: []StockShortage{{
		ProductID: productID,
		Requested: requested,
		Available: available,
	}}}
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		name := s.ProductName
		if name == "" {
			name = s.ProductID.String()
		}
		parts = append(parts, fmt.Sprintf("%s (requested %d, only %d available)", name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// Code returns the error code
func (e *InsufficientStockError) Code() string { return ErrInsufficientStock.Code }

// Unwrap allows errors.Is(err, ErrInsufficientStock)
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ReservationConflictError reports an attempt to resolve a reservation
// that is no longer in the reserved status
type ReservationConflictError struct {
	ReservationID uuid.UUID
	Status        string
	Operation     string
}

func (e *ReservationConflictError) Error() string {
	return fmt.Sprintf("cannot %s reservation %s: status is %s", e.Operation, e.ReservationID, e.Status)
}

// Code returns the error code
func (e *ReservationConflictError) Code() string { return ErrReservationConflict.Code }

// Unwrap allows errors.Is(err, ErrReservationConflict)
func (e *ReservationConflictError) Unwrap() error { return ErrReservationConflict }

// ErrorCode extracts a stable code from any error in the chain.
// Unknown errors yield "INTERNAL_ERROR".
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
