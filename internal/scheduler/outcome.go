package scheduler

import (
	"github.com/google/uuid"
)

// Outcome status values for one lease within a batch run.
const (
	OutcomeSucceeded     = "succeeded"
	OutcomeAlreadyBilled = "already_billed"
	OutcomeNoCredentials = "no_credentials"
	OutcomeFailed        = "failed"
)

// Error kinds attached to skipped or failed outcomes.
const (
	KindInvalidTimezone    = "invalid_timezone"
	KindAlreadyBilled      = "already_billed"
	KindCredentialsMissing = "credentials_missing"
	KindPrimaryLedger      = "primary_ledger"
	KindSecondaryLedger    = "secondary_ledger"
	KindStoreUnavailable   = "store_unavailable"
	KindInternal           = "internal"
)

// Outcome records what happened to one lease. Outcomes are append-only; no
// other state is shared across leases in a run.
type Outcome struct {
	LeaseID uuid.UUID `json:"lease_id"`
	Status  string    `json:"status"`
	Kind    string    `json:"error_kind,omitempty"`
	Message string    `json:"message,omitempty"`

	// Unsynced marks a succeeded charge whose accounting mirror failed; the
	// charge stands with a null secondary reference for the repair pass.
	Unsynced bool `json:"unsynced,omitempty"`
}

// Summary aggregates a full batch run for the trigger's caller.
type Summary struct {
	Processed            int       `json:"processed"`
	Succeeded            int       `json:"succeeded"`
	Skipped              int       `json:"skipped"`
	SkippedAlreadyBilled int       `json:"skipped_already_billed"`
	SkippedNoCredentials int       `json:"skipped_no_credentials"`
	Failed               int       `json:"failed"`
	Errors               []Outcome `json:"errors,omitempty"`
}

// Record folds one outcome into the summary.
func (s *Summary) Record(o Outcome) {
	s.Processed++
	switch o.Status {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeAlreadyBilled:
		s.Skipped++
		s.SkippedAlreadyBilled++
	case OutcomeNoCredentials:
		s.Skipped++
		s.SkippedNoCredentials++
	default:
		s.Failed++
	}
	if o.Status == OutcomeFailed || o.Status == OutcomeNoCredentials {
		s.Errors = append(s.Errors, o)
	}
}

// RepairSummary aggregates a secondary-ledger repair pass.
type RepairSummary struct {
	Scanned  int       `json:"scanned"`
	Repaired int       `json:"repaired"`
	Failed   int       `json:"failed"`
	Errors   []Outcome `json:"errors,omitempty"`
}
