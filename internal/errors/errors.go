// Package errors provides structured error handling with HTTP status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for metrics and response formatting.
type ErrorType string

const (
	// TypeAlreadyExists indicates a duplicate instance id (HTTP 400)
	TypeAlreadyExists ErrorType = "already_exists"
	// TypeNotFound indicates an unknown instance id (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeInvalidArgument indicates missing or malformed input (HTTP 400)
	TypeInvalidArgument ErrorType = "invalid_argument"
	// TypeInvalidPhone indicates a number that fails normalization (HTTP 400)
	TypeInvalidPhone ErrorType = "invalid_phone"
	// TypeNotReady indicates a send against a non-ready instance (HTTP 400)
	TypeNotReady ErrorType = "not_ready"
	// TypeSendFailed indicates the automation client rejected a send (HTTP 500)
	TypeSendFailed ErrorType = "send_failed"
	// TypeInitError indicates the automation client failed to start (HTTP 500)
	TypeInitError ErrorType = "init_error"
	// TypeInternal indicates any other server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and optional cause.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeNotFound:
		return http.StatusNotFound
	case TypeAlreadyExists, TypeInvalidArgument, TypeInvalidPhone, TypeNotReady:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// AlreadyExistsError creates a duplicate-id error (HTTP 400).
func AlreadyExistsError(message string) *Error {
	return &Error{Type: TypeAlreadyExists, Message: message, Context: make(map[string]any)}
}

// NotFoundError creates a new not-found error (HTTP 404).
func NotFoundError(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message, Context: make(map[string]any)}
}

// InvalidArgumentError creates a missing/malformed-input error (HTTP 400).
func InvalidArgumentError(message string) *Error {
	return &Error{Type: TypeInvalidArgument, Message: message, Context: make(map[string]any)}
}

// InvalidPhoneError creates a phone-format error (HTTP 400).
func InvalidPhoneError(message string) *Error {
	return &Error{Type: TypeInvalidPhone, Message: message, Context: make(map[string]any)}
}

// NotReadyError creates a not-ready error (HTTP 400).
func NotReadyError(message string) *Error {
	return &Error{Type: TypeNotReady, Message: message, Context: make(map[string]any)}
}

// SendFailedError creates a send-failure error (HTTP 500).
func SendFailedError(message string, cause error) *Error {
	return &Error{Type: TypeSendFailed, Message: message, Cause: cause, Context: make(map[string]any)}
}

// InitError creates a client-initialization error (HTTP 500).
func InitError(message string, cause error) *Error {
	return &Error{Type: TypeInitError, Message: message, Cause: cause, Context: make(map[string]any)}
}

// InternalError creates a new internal error (HTTP 500).
func InternalError(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause, Context: make(map[string]any)}
}

// WithCause attaches an underlying cause (chainable). The cause stays
// reachable through errors.Is/As and is hidden from clients in production.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse represents the JSON structure sent to clients.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Cause   string `json:"error,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
// The underlying cause is included only when exposeCause is set; production
// deployments keep it off so internals never leak to clients.
func (e *Error) ToResponse(exposeCause bool) ErrorResponse {
	resp := ErrorResponse{Status: "error", Message: e.Message}
	if exposeCause && e.Cause != nil {
		resp.Cause = e.Cause.Error()
	}
	return resp
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
