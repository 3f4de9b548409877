package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Stable error codes surfaced to callers.
const (
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeSchemaValidation = "SCHEMA_VALIDATION_FAILED"
	CodeStorage          = "STORAGE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUpstream         = errors.New("upstream service error")
	ErrSchemaValidation = errors.New("schema validation failed")
	ErrStorage          = errors.New("storage error")
	ErrInternal         = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NotAuthenticatedError(message string) error {
	return NewAppError(CodeNotAuthenticated, message, ErrNotAuthenticated)
}

// NotFoundError covers absent records, foreign owners and stale statuses alike;
// the three causes are indistinguishable to the caller.
func NotFoundError(message string) error {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

func InvalidInputError(message string) error {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func InvalidInputErrorf(format string, args ...any) error {
	return InvalidInputError(fmt.Sprintf(format, args...))
}

func UpstreamError(message string, cause error) error {
	if cause == nil {
		cause = ErrUpstream
	}
	return NewAppError(CodeUpstream, message, cause)
}

func SchemaValidationError(message string, cause error) error {
	if cause == nil {
		cause = ErrSchemaValidation
	}
	return NewAppError(CodeSchemaValidation, message, cause)
}

func StorageError(message string, cause error) error {
	if cause == nil {
		cause = ErrStorage
	}
	return NewAppError(CodeStorage, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps an error to the status code the API layer should return.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSchemaValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the stable code for an error, falling back to INTERNAL_ERROR.
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return CodeNotAuthenticated
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrSchemaValidation):
		return CodeSchemaValidation
	case errors.Is(err, ErrUpstream):
		return CodeUpstream
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}
