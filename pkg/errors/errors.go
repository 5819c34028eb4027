// Package errors defines structured error types for the quotagate admission service.
// Every error maps to a machine-readable code and an HTTP status so the transport layer can
// render a structured rejection instead of leaking raw internal errors.
package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/turtacn/quotagate/pkg/constants"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// GateError represents a structured error with additional metadata
type GateError interface {
	error

	// Code returns the machine-readable error code
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description safe to show to end users
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) GateError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) GateError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

// baseError is the internal implementation of GateError
type baseError struct {
	code        constants.ErrorCode
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Code() constants.ErrorCode { return e.code }

func (e *baseError) HTTPStatus() int { return e.httpStatus }

func (e *baseError) Description() string { return e.description }

func (e *baseError) Unwrap() error { return e.cause }

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) GateError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) GateError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} { return e.metadata }

// NewError creates a new GateError with the specified parameters
func NewError(code constants.ErrorCode, httpStatus int, description string, message string) GateError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error
func ErrInvalidRequest(message string) GateError {
	return NewError(
		constants.ErrCodeInvalidRequest,
		http.StatusBadRequest,
		"The request is missing a required parameter or includes an invalid parameter value.",
		message,
	)
}

// ErrServerError creates a server_error error
func ErrServerError(message string) GateError {
	return NewError(
		constants.ErrCodeServerError,
		http.StatusInternalServerError,
		"The server encountered an unexpected condition that prevented it from fulfilling the request.",
		message,
	)
}

// ErrInvalidConfig creates an invalid_config error
func ErrInvalidConfig(message string) GateError {
	return NewError(
		constants.ErrCodeInvalidConfig,
		http.StatusInternalServerError,
		"The service is misconfigured.",
		message,
	)
}

// ErrNotFound creates a not_found error
func ErrNotFound(resource string) GateError {
	return NewError(
		constants.ErrCodeNotFound,
		http.StatusNotFound,
		"The requested resource was not found.",
		fmt.Sprintf("%s not found", resource),
	)
}

// ================================================================================
// Admission Error Constructors
// ================================================================================

// ErrUnknownAction is returned when an action category has no registered policy.
// It is a configuration bug; the request is denied.
func ErrUnknownAction(action constants.ActionCategory) GateError {
	return NewError(
		constants.ErrCodeUnknownAction,
		http.StatusTooManyRequests,
		"This action is temporarily unavailable. Please try again later.",
		fmt.Sprintf("no quota policy registered for action %q", action),
	).WithMetadata("action", string(action))
}

// ErrStoreRead is returned when the counter store could not be read.
func ErrStoreRead(cause error) GateError {
	return NewError(
		constants.ErrCodeStoreRead,
		http.StatusTooManyRequests,
		"Usage could not be verified right now. Please try again shortly.",
		"counter store read failed",
	).WithCause(cause)
}

// ErrStoreWrite is returned when the counter upsert failed.
func ErrStoreWrite(cause error) GateError {
	return NewError(
		constants.ErrCodeStoreWrite,
		http.StatusTooManyRequests,
		"Usage could not be recorded right now. Please try again shortly.",
		"counter store write failed",
	).WithCause(cause)
}

// ErrSilentWrite is returned when the store accepted an upsert but returned no row.
// This usually means a permission rule or schema mismatch turned the write into a no-op.
func ErrSilentWrite() GateError {
	return NewError(
		constants.ErrCodeSilentWrite,
		http.StatusTooManyRequests,
		"Usage could not be recorded right now. Please try again shortly.",
		"counter store accepted the write but returned no row",
	)
}

// ErrCheckCancelled is returned when the caller's context ended before a decision was made.
func ErrCheckCancelled(cause error) GateError {
	return NewError(
		constants.ErrCodeTemporarilyUnavailable,
		http.StatusTooManyRequests,
		"The request was interrupted before usage could be verified. Please try again.",
		"admission check cancelled",
	).WithCause(cause)
}

// ErrQuotaExceeded creates the user-facing rejection for an exhausted quota.
func ErrQuotaExceeded(action constants.ActionCategory, limit int64, resetAt time.Time) GateError {
	return NewError(
		constants.ErrCodeQuotaExceeded,
		http.StatusTooManyRequests,
		fmt.Sprintf("Quota reached. You can try again after %s.", resetAt.UTC().Format(time.RFC1123)),
		fmt.Sprintf("quota exceeded for action %q (limit %d)", action, limit),
	).WithMetadata("action", string(action)).
		WithMetadata("limit", limit).
		WithMetadata("reset_at", resetAt.UTC().Format(time.RFC3339))
}

// ================================================================================
// Infrastructure Error Constructors
// ================================================================================

// ErrDatabaseConnection creates a database connection failed error
func ErrDatabaseConnection(cause error) GateError {
	return ErrServerError("failed to connect to database").WithCause(cause)
}

// ErrCacheConnection creates a cache connection failed error
func ErrCacheConnection(cause error) GateError {
	return ErrServerError("failed to connect to redis").WithCause(cause)
}

// ErrVaultUnavailable creates a Vault access failed error
func ErrVaultUnavailable(cause error) GateError {
	return NewError(
		constants.ErrCodeTemporarilyUnavailable,
		http.StatusServiceUnavailable,
		"A required secret could not be loaded.",
		"vault request failed",
	).WithCause(cause)
}

// ================================================================================
// Error Inspection Utilities
// ================================================================================

// AsGateError finds the first GateError in err's chain
func AsGateError(err error) (GateError, bool) {
	var gateErr GateError
	if goerrors.As(err, &gateErr) {
		return gateErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first GateError in err's chain, or server_error.
func CodeOf(err error) constants.ErrorCode {
	if gateErr, ok := AsGateError(err); ok {
		return gateErr.Code()
	}
	return constants.ErrCodeServerError
}

// HasCode reports whether err's chain carries a GateError with the given code
func HasCode(err error, code constants.ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsStoreError reports whether err is one of the counter store failures
func IsStoreError(err error) bool {
	switch CodeOf(err) {
	case constants.ErrCodeStoreRead, constants.ErrCodeStoreWrite, constants.ErrCodeSilentWrite:
		return true
	}
	return false
}

// IsTransient reports whether err is an infrastructure denial the caller may retry shortly
func IsTransient(err error) bool {
	return IsStoreError(err) || HasCode(err, constants.ErrCodeTemporarilyUnavailable)
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts a GateError to an ErrorResponse
func ToErrorResponse(err GateError) *ErrorResponse {
	return &ErrorResponse{
		Error:            string(err.Code()),
		ErrorDescription: err.Description(),
		Metadata:         err.Metadata(),
	}
}

// ToGenericErrorResponse converts any error to an ErrorResponse
func ToGenericErrorResponse(err error) *ErrorResponse {
	if gateErr, ok := AsGateError(err); ok {
		return ToErrorResponse(gateErr)
	}

	return &ErrorResponse{
		Error:            string(constants.ErrCodeServerError),
		ErrorDescription: "An unexpected error occurred",
	}
}

//Personal.AI order the ending
