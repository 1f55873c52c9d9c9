package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charge status values.
const (
	ChargeStatusPending = "pending"
	ChargeStatusPaid    = "paid"
	ChargeStatusVoid    = "void"
)

// Charge-related domain errors.
var (
	ErrChargeNotFound = &Error{Code: ENOTFOUND, Message: "Charge not found"}

	// ErrChargeExists is returned when a charge already exists for the
	// lease and billing period, either from the pre-insert lookup or from
	// the uniqueness constraint rejecting a concurrent insert. Expected
	// steady state, not a failure.
	ErrChargeExists = &Error{Code: ECONFLICT, Message: "Charge already exists for billing period"}
)

// BillingPeriod is the (month, year) key identifying one cycle of rent owed.
// Derived, never stored on its own.
type BillingPeriod struct {
	Month time.Month
	Year  int
}

// PeriodFor returns the billing period containing the given local instant.
func PeriodFor(t time.Time) BillingPeriod {
	return BillingPeriod{Month: t.Month(), Year: t.Year()}
}

// DueDate returns the period's due date at midnight UTC on the given
// day of month, clamped to the month's last day.
func (p BillingPeriod) DueDate(day int) time.Time {
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

func (p BillingPeriod) String() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Charge is the durable record of one billing period's invoice and the
// idempotency anchor: at most one exists per (lease, month, year), and its
// existence alone blocks re-billing even if the accounting mirror never
// completed.
type Charge struct {
	ID      uuid.UUID
	LeaseID uuid.UUID
	Period  BillingPeriod
	Amount  decimal.Decimal
	DueDate time.Time
	Status  string

	// PrimaryRef is the collections-ledger invoice reference. Set before the
	// charge row is written; a charge never exists without it.
	PrimaryRef string

	// SecondaryRef is the accounting-ledger reference. Empty until the mirror
	// succeeds, possibly forever.
	SecondaryRef string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Synced reports whether the accounting mirror completed.
func (c *Charge) Synced() bool {
	return c.SecondaryRef != ""
}

// ChargeStore is the persistence boundary for charge records.
type ChargeStore interface {
	// ChargeForPeriod returns the charge for the lease and period, or
	// ErrChargeNotFound.
	ChargeForPeriod(ctx context.Context, leaseID uuid.UUID, period BillingPeriod) (*Charge, error)

	// InsertCharge writes a new charge. The insert is atomic with respect to
	// the (lease_id, period_month, period_year) uniqueness constraint:
	// a concurrent duplicate returns ErrChargeExists, never a partial write.
	InsertCharge(ctx context.Context, charge *Charge) error

	// SetSecondaryRef records a completed accounting mirror.
	SetSecondaryRef(ctx context.Context, chargeID uuid.UUID, ref string) error

	// ListUnsyncedCharges returns charges with no secondary reference created
	// before the cutoff, for the repair pass.
	ListUnsyncedCharges(ctx context.Context, cutoff time.Time) ([]Charge, error)
}
