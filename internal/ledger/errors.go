package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when a ledger API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("ledger: invalid or missing API key")

	// ErrPayeeNotFound is returned when the ledger has no record of the payee.
	ErrPayeeNotFound = errors.New("ledger: payee not found")

	// ErrChargeNotFound is returned when the referenced charge does not exist.
	ErrChargeNotFound = errors.New("ledger: charge not found")
)

// APIError wraps a provider API failure with enough context to debug a
// batch-run summary entry.
type APIError struct {
	Provider      string // "stripe", "quickbooks"
	Message       string // Human-readable error message
	Code          string // Provider error code, if any
	StatusCode    int    // HTTP status from the provider
	RequestID     string // Provider request ID for support escalation
	OriginalError error  // Original error from the SDK or transport
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if the failure is likely transient and a later
// tick may succeed.
func (e *APIError) IsTemporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
