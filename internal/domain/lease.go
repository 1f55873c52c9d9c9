package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lease status values. Only active and month-to-month leases are billable.
const (
	LeaseStatusActive       = "active"
	LeaseStatusMonthToMonth = "month_to_month"
	LeaseStatusEnded        = "ended"
	LeaseStatusEvicted      = "evicted"
)

// Lease-related domain errors.
var (
	ErrLeaseNotFound = &Error{Code: ENOTFOUND, Message: "Lease not found"}
)

// RentIncrease is an immutable, append-only amendment fact: from EffectiveDate
// onward the lease rents for NewAmount. Owned by the lease; never reordered.
type RentIncrease struct {
	ID            uuid.UUID
	LeaseID       uuid.UUID
	EffectiveDate time.Time
	NewAmount     decimal.Decimal
}

// Lease is a rental agreement subject to recurring billing.
type Lease struct {
	ID      uuid.UUID
	OwnerID uuid.UUID

	// Timezone is the owning agent's IANA zone name; billing eligibility is
	// evaluated against local midnight in this zone.
	Timezone string

	PropertyAddress string
	Unit            string
	TenantName      string
	TenantEmail     string

	// PrimaryPayeeRef is the collections-ledger customer reference for the
	// tenant, established when the tenant was onboarded. Billing cannot
	// proceed without it.
	PrimaryPayeeRef string

	// BaseRent is the monthly rent before any rent increase applies.
	BaseRent decimal.Decimal

	// RentDueDay is the day of month rent is due (typically 1).
	RentDueDay int

	Status string

	// AutoInvoice gates whether the scheduler bills this lease at all.
	AutoInvoice bool

	// Increases holds the rent-increase history in insertion order.
	Increases []RentIncrease

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Billable reports whether the scheduler should consider this lease.
func (l *Lease) Billable() bool {
	if !l.AutoInvoice {
		return false
	}
	return l.Status == LeaseStatusActive || l.Status == LeaseStatusMonthToMonth
}

// OwnerZone pairs an owning agent with their IANA time zone, as loaded for
// the midnight-eligibility scan.
type OwnerZone struct {
	OwnerID  uuid.UUID
	Timezone string
}

// LeaseStore is the persistence boundary for leases and owner zones.
type LeaseStore interface {
	// ListOwnerZones returns one entry per distinct lease owner with the
	// owner's time zone.
	ListOwnerZones(ctx context.Context) ([]OwnerZone, error)

	// ListBillableLeases returns leases with auto-invoicing enabled and a
	// billable status, restricted to the given owners. Rent-increase history
	// is loaded in insertion order.
	ListBillableLeases(ctx context.Context, ownerIDs []uuid.UUID) ([]Lease, error)

	// GetLease returns one lease with its rent-increase history, or
	// ErrLeaseNotFound.
	GetLease(ctx context.Context, id uuid.UUID) (*Lease, error)
}
