// Package apperror defines the error type every API failure is reported with.
// Handlers register an *AppError and the error middleware turns it into a
// {code, message, details} body with the matching HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Machine-readable codes. Clients switch on these, never on messages.
const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation = "VALIDATION_ERROR"

	CodeBusinessRule   = "BUSINESS_RULE_VIOLATION"
	CodeEmptySelection = "EMPTY_SELECTION"

	CodeRateLimited = "RATE_LIMITED"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	CodeNotFound = "NOT_FOUND"

	CodeDuplicate   = "DUPLICATE_ENTRY"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is an error with a code, a client-safe message and an HTTP status.
// Err is logged but never serialized.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail sets details[key] and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// NewValidation reports a malformed request.
func NewValidation(message string) *AppError {
	return newError(http.StatusBadRequest, CodeValidation, message)
}

// NewNotFound reports a missing entity of the caller's seller.
func NewNotFound(entity string, id any) *AppError {
	return newError(http.StatusNotFound, CodeNotFound, entity+" not found").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewBusinessRule reports a well-formed request the domain refuses.
func NewBusinessRule(code, message string) *AppError {
	return newError(http.StatusUnprocessableEntity, code, message)
}

// NewEmptySelection is returned when a bulk action is asked to run with
// nothing selected.
func NewEmptySelection(action string) *AppError {
	return NewBusinessRule(CodeEmptySelection, "Nothing is selected").WithDetail("action", action)
}

// NewRateLimited reports throttling. The wait is rounded to whole seconds
// for the Retry-After header.
func NewRateLimited(retryAfter time.Duration) *AppError {
	return newError(http.StatusTooManyRequests, CodeRateLimited, "Too many requests, slow down").
		WithDetail("retry_after_seconds", int(retryAfter.Seconds()+0.5))
}

// NewInternal wraps an unexpected failure. Only the code reaches the client.
func NewInternal(err error) *AppError {
	return newError(http.StatusInternalServerError, CodeInternal, "Internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return newError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return newError(http.StatusForbidden, CodeForbidden, message)
}

// NewIdempotencyConflict means a request with the same key is still running.
func NewIdempotencyConflict(key string) *AppError {
	return newError(http.StatusConflict, CodeIdempotency, "A request with this idempotency key is in progress").
		WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch means the key was already used by a different
// request: another user, endpoint or body.
func NewIdempotencyMismatch(key string) *AppError {
	return newError(http.StatusConflict, CodeIdempotency, "Idempotency key was used for a different request").
		WithDetail("idempotency_key", key)
}

// NewDuplicate reports a unique constraint hit on field.
func NewDuplicate(entity, field, value string) *AppError {
	return newError(http.StatusConflict, CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// AsAppError finds an *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// GetHTTPStatus maps err to a status; anything that is not an AppError is a 500.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
