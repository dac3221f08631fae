package dto

import (
	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Response is the JSON envelope of every API answer. It mirrors the
// application Result and adds the request id.
type Response struct {
	Success   bool                `json:"success"`
	Data      any                 `json:"data"`
	Message   string              `json:"message,omitempty"`
	Code      string              `json:"code,omitempty"`
	Errors    map[string][]string `json:"errors,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// FromResult converts an application result into the envelope
func FromResult(r apptrade.Result, requestID string) Response {
	return Response{
		Success:   r.Success,
		Data:      r.Data,
		Message:   r.Message,
		Code:      r.Code,
		Errors:    r.Errors,
		RequestID: requestID,
	}
}

// NewErrorResponse creates a failed envelope with a single non-field message
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success:   false,
		Message:   message,
		Code:      code,
		Errors:    map[string][]string{apptrade.NonFieldErrors: {message}},
		RequestID: requestID,
	}
}

// NewValidationResponse creates a failed envelope carrying per-field messages
func NewValidationResponse(fields map[string][]string, requestID string) Response {
	return Response{
		Success:   false,
		Message:   "Validation failed",
		Code:      CodeValidation,
		Errors:    fields,
		RequestID: requestID,
	}
}

// ListQuery holds the paging parameters of list endpoints
type ListQuery struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by" binding:"omitempty,max=32"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search     string `form:"search" binding:"omitempty,max=100"`
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,max=32"`
}

// Filter converts the query into a repository filter, keeping defaults for
// anything left unset
func (q ListQuery) Filter() shared.Filter {
	f := shared.DefaultFilter()
	if q.Page > 0 {
		f.Page = q.Page
	}
	if q.PageSize > 0 {
		f.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		f.OrderDir = q.OrderDir
	}
	f.Search = q.Search
	if id, err := uuid.Parse(q.CustomerID); err == nil {
		f.CustomerID = id
	}
	return f
}
