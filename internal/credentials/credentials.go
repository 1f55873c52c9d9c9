package credentials

import (
	"context"

	"github.com/google/uuid"

	"github.com/lodgepole/rentroll/internal/domain"
)

// Provider identifies an external ledger integration an owner may connect.
type Provider string

const (
	// ProviderStripe is the primary collections ledger (invoice issue + send).
	ProviderStripe Provider = "stripe"

	// ProviderQuickBooks is the secondary accounting ledger (bookkeeping mirror).
	ProviderQuickBooks Provider = "quickbooks"
)

// ErrNotFound is returned when an owner has not connected the provider.
// Common and expected; callers skip the owner rather than failing.
var ErrNotFound = &domain.Error{Code: domain.ENOTFOUND, Message: "No credentials for provider"}

// Credentials holds a decrypted secret for one owner/provider pair.
// Token refresh is handled by the integration-connect flow that writes these
// rows; resolvers only read.
type Credentials struct {
	OwnerID  uuid.UUID
	Provider Provider

	// APIKey is the provider secret (Stripe secret key, QuickBooks access
	// token, ...). Never logged.
	APIKey string

	// RealmID is provider-specific addressing (QuickBooks company ID).
	// Empty where the provider needs none.
	RealmID string
}

// Resolver looks up decrypted ledger credentials per owner and provider.
type Resolver interface {
	// Get returns the owner's credentials for the provider, or ErrNotFound.
	Get(ctx context.Context, ownerID uuid.UUID, provider Provider) (*Credentials, error)
}
