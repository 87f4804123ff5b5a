package errors

import (
	"fmt"
	"net/http"
)

// APIError is the stock business error. It reports its own HTTP status and
// carries a machine code plus optional structured details.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

// Error implements the error interface. It returns the client-safe message;
// the cause is reachable through Unwrap.
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap allows errors.Is and errors.As to see the cause
func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatus implements Business
func (e *APIError) HTTPStatus() int { return e.Status }

// ErrorCode reports the machine-facing code
func (e *APIError) ErrorCode() string { return e.Code }

// ErrorDetails reports the structured details, if any
func (e *APIError) ErrorDetails() any { return e.Details }

// Is matches another APIError with the same status and code, so that
// predefined errors work as sentinels even after WithCause/WithDetails.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Code == t.Code
}

// WithDetails returns a copy of e carrying details
func (e *APIError) WithDetails(details any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of e wrapping cause
func (e *APIError) WithCause(cause error) *APIError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// New creates a new APIError with the given parameters
func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(status int, code, message string, details any) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Codes shared by the predefined errors and the opaque fallback
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeConflict            = "CONFLICT"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeInternalServer      = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeRequestTimeout      = "REQUEST_TIMEOUT"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA_TYPE"
	CodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"
)

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, CodeValidationFailed, "Request validation failed")

	// 401 Unauthorized
	ErrUnauthorized = New(http.StatusUnauthorized, CodeUnauthorized, "Authentication required")

	// 403 Forbidden
	ErrForbidden = New(http.StatusForbidden, CodeForbidden, "Access denied")

	// 404 Not Found
	ErrNotFound = New(http.StatusNotFound, CodeNotFound, "Resource not found")

	// 405 Method Not Allowed
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")

	// 409 Conflict
	ErrConflict = New(http.StatusConflict, CodeConflict, "Resource conflict")

	// 413 Payload Too Large
	ErrPayloadTooLarge = New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body exceeds maximum allowed size")

	// 415 Unsupported Media Type
	ErrUnsupportedMediaType = New(http.StatusUnsupportedMediaType, CodeUnsupportedMedia, "Unsupported content type")

	// 422 Unprocessable Entity
	ErrUnprocessableEntity = New(http.StatusUnprocessableEntity, CodeUnprocessableEntity, "Request could not be processed")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, CodeInternalServer, "Internal server error")

	// 503 Service Unavailable
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, CodeServiceUnavailable, "Service temporarily unavailable")

	// 504 Gateway Timeout
	ErrRequestTimeout = New(http.StatusGatewayTimeout, CodeRequestTimeout, "The request took too long to process")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidRequest,
		Message: "Invalid request format",
		Details: err.Error(),
		Cause:   err,
	}
}

// NotFoundError creates a not found error naming the resource
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// ConflictError creates a conflict error naming the resource
func ConflictError(resource string) *APIError {
	return NewWithDetails(http.StatusConflict, CodeConflict, fmt.Sprintf("%s already exists", resource), resource)
}
