package dto

import "net/http"

// Error codes carried by the Result envelope. Domain codes come from
// shared.ErrorCode; the transport adds its own for malformed requests.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInvalidState        = "INVALID_STATE"
	CodeIllegalTransition   = "ILLEGAL_TRANSITION"
	CodeGuardRejected       = "GUARD_REJECTED"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeReservationConflict = "RESERVATION_CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL_ERROR"

	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
	CodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	CodeValidation:   http.StatusBadRequest,
	CodeInvalidInput: http.StatusBadRequest,

	CodeNotFound:      http.StatusNotFound,
	CodeRouteNotFound: http.StatusNotFound,

	// Lifecycle and stock rejections are conflicts with the current state
	CodeAlreadyExists:       http.StatusConflict,
	CodeConcurrencyConflict: http.StatusConflict,
	CodeInvalidState:        http.StatusConflict,
	CodeIllegalTransition:   http.StatusConflict,
	CodeGuardRejected:       http.StatusConflict,
	CodeInsufficientStock:   http.StatusConflict,
	CodeReservationConflict: http.StatusConflict,

	CodeUnauthorized:    http.StatusUnauthorized,
	CodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	CodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
