package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Primary is the collections ledger: the system of record that issues the
// invoice to the payer and collects payment. Sending is the provider's own
// notification to the payee; this service sends nothing itself.
type Primary interface {
	// CreateCharge creates an invoice for the payee and returns the
	// provider's reference for it.
	CreateCharge(ctx context.Context, params ChargeParams) (string, error)

	// Send issues the invoice to the payee (email, payment link).
	Send(ctx context.Context, chargeRef string) error
}

// Secondary is the accounting ledger mirroring charges for bookkeeping,
// independent of collection.
type Secondary interface {
	// EnsurePayee returns the ledger-side payee record for the given
	// details, creating it if absent.
	EnsurePayee(ctx context.Context, details PayeeDetails) (string, error)

	// CreateCharge mirrors a charge against the payee. ExternalRef carries
	// the primary-ledger reference for reconciliation.
	CreateCharge(ctx context.Context, params MirrorChargeParams) (string, error)
}

// ChargeParams describes an invoice to create in the primary ledger.
type ChargeParams struct {
	// PayeeRef is the provider's identifier for the tenant being billed.
	PayeeRef string

	// Description appears on the invoice line (property address, unit, period).
	Description string

	Amount  decimal.Decimal
	DueDate time.Time
}

// PayeeDetails identifies a payee to mirror into the accounting ledger.
type PayeeDetails struct {
	Name  string
	Email string
}

// MirrorChargeParams describes a charge to mirror into the accounting ledger.
type MirrorChargeParams struct {
	PayeeRef    string
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time

	// ExternalRef is the primary-ledger charge reference.
	ExternalRef string
}

// PrimaryFactory builds a primary-ledger client from a resolved API key.
// Clients are constructed per owner per invocation; there is no shared
// process-wide client state.
type PrimaryFactory func(apiKey string) Primary

// SecondaryFactory builds a secondary-ledger client from a resolved API key
// and provider-specific realm.
type SecondaryFactory func(apiKey, realmID string) Secondary
