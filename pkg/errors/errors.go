package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Kind       Kind   `json:"-"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError coerces err into an *AppError, wrapping plain errors as a 500.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalServerError("INTERNAL_ERROR", err.Error())
}

// Is checks if the target error is of type AppError
func Is(err error, target *AppError) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == target.Code
}

// Domain error kinds for the generation pipeline. The Kind distinguishes
// which of the independently-failing concerns (access, generation, billing,
// persistence) produced the error.

// Kind classifies a pipeline error.
type Kind string

const (
	KindAccessDenied  Kind = "access_denied"
	KindGeneration    Kind = "generation"
	KindLedger        Kind = "ledger"
	KindPersistence   Kind = "persistence"
	KindConfiguration Kind = "configuration"
)

// KindOf returns the pipeline kind of err, or "" for untagged errors.
func KindOf(err error) Kind {
	appErr, ok := err.(*AppError)
	if !ok {
		return ""
	}
	return appErr.Kind
}

// NewAccessDeniedError rejects a request before any streaming starts.
func NewAccessDeniedError(message string) *AppError {
	e := NewForbiddenError("ACCESS_DENIED", message)
	e.Kind = KindAccessDenied
	return e
}

// NewGenerationError reports a producer or stage-runner failure. Nothing is
// billed or persisted for the failed unit.
func NewGenerationError(code, message string) *AppError {
	e := NewInternalServerError(code, message)
	e.Kind = KindGeneration
	return e
}

// NewLedgerError reports a billing failure after generation succeeded.
// Content already delivered is not retracted, but it stays unbilled and
// unpersisted.
func NewLedgerError(code, message string) *AppError {
	e := NewInternalServerError(code, message)
	e.Kind = KindLedger
	return e
}

// NewPersistenceError reports a store failure at the final write; surfaced as
// a partial-success warning.
func NewPersistenceError(code, message string) *AppError {
	e := NewInternalServerError(code, message)
	e.Kind = KindPersistence
	return e
}

// NewConfigurationError reports missing or inconsistent configuration, such
// as an unknown billing model.
func NewConfigurationError(code, message string) *AppError {
	e := NewInternalServerError(code, message)
	e.Kind = KindConfiguration
	return e
}
