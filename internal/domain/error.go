package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// These map to HTTP status codes and drive batch outcome classification.
const (
	ECONFLICT     = "conflict"     // 409 - Duplicate charge, uniqueness violation
	EINTERNAL     = "internal"     // 500 - Internal error (hide details)
	EINVALID      = "invalid"      // 400 - Validation error (bad input)
	ENOTFOUND     = "not_found"    // 404 - Resource not found
	EUNAUTHORIZED = "unauthorized" // 401 - Authentication required
	EUNAVAILABLE  = "unavailable"  // 503 - Backing store unreachable
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// Message is a human-readable error message safe to surface in run summaries.
	Message string

	// Op is the operation where the error occurred (e.g., "charge.insert").
	// Used for debugging and logging.
	Op string

	// Err is the underlying error, if any. Used for error wrapping.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a loggable message from an error.
// For internal errors, returns a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred."
		}
		return e.Message
	}

	return "An internal error occurred."
}

// Internal wraps an unexpected error with operation context.
func Internal(err error, op, message string) *Error {
	return &Error{Code: EINTERNAL, Message: message, Op: op, Err: err}
}

// Unavailable wraps a store-connectivity error with operation context.
func Unavailable(err error, op, message string) *Error {
	return &Error{Code: EUNAVAILABLE, Message: message, Op: op, Err: err}
}
