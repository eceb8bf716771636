// Package errors defines the stable error codes returned across the engine
// boundary. Callers branch on Code rather than parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure mode.
type ErrorCode string

const (
	// NotFound indicates a missing path, session, or cache entry.
	NotFound ErrorCode = "NOT_FOUND"
	// TooLarge indicates a file exceeds the configured size cap.
	TooLarge ErrorCode = "TOO_LARGE"
	// Stale indicates a cache hit rejected because the owning file's
	// mtime changed.
	Stale ErrorCode = "STALE"
	// Expired indicates a cache hit rejected because its TTL passed.
	Expired ErrorCode = "EXPIRED"
	// Corrupt indicates a disk-tier blob failed to deserialize.
	Corrupt ErrorCode = "CORRUPT"
	// InvalidArgument indicates an unknown strategy, status, or kind string.
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// DependencyUnmet indicates a checklist item was requested before its
	// dependencies completed. Reported as "not ready", never fatal.
	DependencyUnmet ErrorCode = "DEPENDENCY_UNMET"
	// Internal indicates an unexpected failure.
	Internal ErrorCode = "INTERNAL"
)

// CabError is a structured engine error with a stable code.
type CabError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	cause   error
}

// Error implements the error interface.
func (e *CabError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CabError) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details to the error.
func (e *CabError) WithDetails(details map[string]interface{}) *CabError {
	e.Details = details
	return e
}

// New creates a CabError with the given code and message.
func New(code ErrorCode, message string) *CabError {
	return &CabError{Code: code, Message: message}
}

// Wrap creates a CabError wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *CabError {
	return &CabError{Code: code, Message: message, cause: cause}
}

// NewNotFound creates a NOT_FOUND error for a missing path or record.
func NewNotFound(what string) *CabError {
	return &CabError{
		Code:    NotFound,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]interface{}{"target": what},
	}
}

// NewTooLarge creates a TOO_LARGE error for an oversized file.
func NewTooLarge(path string, size, limit int64) *CabError {
	return &CabError{
		Code:    TooLarge,
		Message: fmt.Sprintf("file too large: %s (%d bytes, limit %d)", path, size, limit),
		Details: map[string]interface{}{"path": path, "size": size, "limit": limit},
	}
}

// NewInvalidArgument creates an INVALID_ARGUMENT error.
func NewInvalidArgument(msg string) *CabError {
	return &CabError{Code: InvalidArgument, Message: msg}
}

// NewInternal creates an INTERNAL error wrapping the cause.
func NewInternal(cause error) *CabError {
	msg := "internal error"
	if cause != nil {
		msg = cause.Error()
	}
	return &CabError{Code: Internal, Message: msg, cause: cause}
}

// HasCode reports whether err is (or wraps) a CabError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *CabError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or INTERNAL for plain errors.
func CodeOf(err error) ErrorCode {
	var ce *CabError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return Internal
}
