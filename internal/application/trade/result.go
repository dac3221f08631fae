package trade

import (
	"errors"
	"fmt"

	"github.com/erp/backoffice/internal/domain/shared"
)

// NonFieldErrors is the Errors key for messages that belong to no single field
const NonFieldErrors = "__all__"

// Result is the uniform outcome of every document operation.
// Failures never escape as panics; callers inspect Success.
type Result struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data"`
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`

	err error
}

// Ok creates a successful result
func Ok(data any, message string) Result {
	return Result{Success: true, Data: data, Message: message}
}

// Fail converts an error into a failed result with a human-readable message
// and, where the error carries them, per-field or per-item details
func Fail(err error) Result {
	r := Result{Success: false, Code: shared.ErrorCode(err), err: err}

	var (
		validation *shared.ValidationError
		notFound   *shared.NotFoundError
		illegal    *shared.IllegalTransitionError
		rejected   *shared.GuardRejectedError
		stock      *shared.InsufficientStockError
		conflict   *shared.ReservationConflictError
		domain     *shared.DomainError
	)
	switch {
	case errors.As(err, &validation):
		r.Message = "Validation failed"
		r.Errors = copyFields(validation.Fields)
	case errors.As(err, &notFound):
		r.Message = notFound.Error()
	case errors.As(err, &illegal):
		r.Message = fmt.Sprintf("Cannot %s a %s in status %s", illegal.Trigger, illegal.Machine, illegal.State)
	case errors.As(err, &rejected):
		r.Message = fmt.Sprintf("Cannot %s the %s: condition '%s' not met", rejected.Trigger, rejected.Machine, rejected.Guard)
	case errors.As(err, &stock):
		r.Message = "Insufficient stock"
		items := make([]string, 0, len(stock.Shortages))
		for _, s := range stock.Shortages {
			name := s.ProductName
			if name == "" {
				name = s.ProductID.String()
			}
			items = append(items, fmt.Sprintf("%s: requested %d, only %d available", name, s.Requested, s.Available))
		}
		r.Errors = map[string][]string{"items": items}
	case errors.As(err, &conflict):
		r.Message = conflict.Error()
	case errors.As(err, &domain):
		r.Message = domain.Message
	default:
		r.Message = "Internal error"
	}

	if r.Errors == nil && r.Message != "" {
		r.Errors = map[string][]string{NonFieldErrors: {r.Message}}
	}
	return r
}

// Err returns the error a failed result was built from
func (r Result) Err() error {
	return r.err
}

func copyFields(fields map[string][]string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for k, v := range fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}
