// Package apierr defines HiveBoard's HTTP error taxonomy and the JSON
// envelope that the auth, rate-limit and query/CRUD handlers write on error
// (spec §7). The ingest result body, the timeout and body-size middlewares
// and the WebSocket bridge endpoints write their own error bodies.
package apierr

import (
	"encoding/json"
	"net/http"
)

// Code is one of the error taxonomy's fixed string codes.
type Code string

const (
	CodeValidationError       Code = "validation_error"
	CodeBadRequest            Code = "bad_request"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeNotFound              Code = "not_found"
	CodeRateLimited           Code = "rate_limited"
	CodeConflict              Code = "conflict"
	CodeCannotDeleteDefault   Code = "cannot_delete_default"
	CodeUnknownProject        Code = "unknown_project"
	CodeInternalError         Code = "internal_error"
)

// Error is the structured error body that Write sends.
type Error struct {
	ErrorCode Code           `json:"error"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// New builds an Error for the given HTTP status.
func New(status int, code Code, message string) *Error {
	return &Error{ErrorCode: code, Message: message, Status: status}
}

// WithDetails attaches structured details (e.g. retry_after_seconds).
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Write sends the error as the JSON response body.
func Write(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err)
}

// BadRequest is a convenience constructor for 400 bad_request.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFound is a convenience constructor for 404 not_found.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized is a convenience constructor for 401 unauthorized.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden is a convenience constructor for 403 forbidden.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

// Internal is a convenience constructor for 500 internal_error.
func Internal(message string) *Error {
	return New(http.StatusInternalServerError, CodeInternalError, message)
}

// RateLimited is a convenience constructor for 429 rate_limited with a
// retry_after_seconds detail.
func RateLimited(retryAfterSeconds int) *Error {
	return New(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded").
		WithDetails(map[string]any{"retry_after_seconds": retryAfterSeconds})
}
