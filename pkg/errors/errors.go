package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway         ErrorCode = "BAD_GATEWAY"

	// Domain error codes for the streaming engine's failure kinds.
	ErrCodeMalformedName      ErrorCode = "MALFORMED_NAME"
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
	ErrCodeStarvation         ErrorCode = "STARVATION"
	ErrCodeFECIrrecoverable   ErrorCode = "FEC_IRRECOVERABLE"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// NewMalformedName reports a name whose hierarchical structure could
// not be parsed.
func NewMalformedName(name string, cause error) *AppError {
	return WrapError(cause, ErrCodeMalformedName, fmt.Sprintf("malformed name %q", name), http.StatusBadRequest).
		WithContext("name", name)
}

// NewVerificationFailed reports a sample whose manifest signature did not
// validate.
func NewVerificationFailed(samplePrefix, reason string) *AppError {
	return NewAppError(ErrCodeVerificationFailed, fmt.Sprintf("verification failed for %s: %s", samplePrefix, reason), http.StatusUnprocessableEntity).
		WithContext("sample", samplePrefix).WithContext("reason", reason)
}

// NewStarvation reports a pipeline that produced no new data for longer
// than the configured starvation timeout.
func NewStarvation(threadPrefix string) *AppError {
	return NewAppError(ErrCodeStarvation, fmt.Sprintf("starvation on %s", threadPrefix), http.StatusGatewayTimeout).
		WithContext("thread", threadPrefix)
}

// NewFECIrrecoverable reports a sample for which the fetched data and
// parity segments fall short of what Reed-Solomon recovery requires.
func NewFECIrrecoverable(samplePrefix string, present, required int) *AppError {
	return NewAppError(ErrCodeFECIrrecoverable, fmt.Sprintf("irrecoverable sample %s: %d/%d segments present", samplePrefix, present, required), http.StatusUnprocessableEntity).
		WithContext("sample", samplePrefix).WithContext("present", present).WithContext("required", required)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	// Try to unwrap
	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}
