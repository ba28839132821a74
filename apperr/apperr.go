package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal             = "internal"
	CodeNotFound             = "not_found"
	CodeMethodNotAllowed     = "method_not_allowed"
	CodeBadRequest           = "bad_request"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodePayloadTooLarge      = "payload_too_large"
	CodeUnsupportedMediaType = "unsupported_media_type"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Code    string
	Status  int
	Message string
	Cause   error
}

// New creates a new Error.
func New(code string, status int, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// BadRequest reports a malformed request.
func BadRequest(message string, cause error) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message, cause)
}

// Unauthorized reports a missing or rejected principal.
func Unauthorized(message string, cause error) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message, cause)
}

// Forbidden reports an authenticated principal without access.
func Forbidden(message string, cause error) *Error {
	return New(CodeForbidden, http.StatusForbidden, message, cause)
}

// NotFound reports a missing resource.
func NotFound(message string, cause error) *Error {
	return New(CodeNotFound, http.StatusNotFound, message, cause)
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed(message string, cause error) *Error {
	return New(CodeMethodNotAllowed, http.StatusMethodNotAllowed, message, cause)
}

// PayloadTooLarge reports a request body over the configured limit.
func PayloadTooLarge(message string, cause error) *Error {
	return New(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, message, cause)
}

// UnsupportedMediaType reports a body with no registered decoder.
func UnsupportedMediaType(message string, cause error) *Error {
	return New(CodeUnsupportedMediaType, http.StatusUnsupportedMediaType, message, cause)
}

// Internal reports a server-side failure.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message, cause)
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// As extracts an *Error if present.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	if appErr := As(err); appErr != nil {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
