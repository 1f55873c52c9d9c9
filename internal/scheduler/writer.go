package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgepole/rentroll/internal/credentials"
	"github.com/lodgepole/rentroll/internal/domain"
	"github.com/lodgepole/rentroll/internal/events"
	"github.com/lodgepole/rentroll/internal/ledger"
)

// PrimaryLedgerError marks a failed collections-ledger write. Nothing was
// written locally, so the lease is fully retryable on the next tick.
type PrimaryLedgerError struct {
	Err error
}

func (e *PrimaryLedgerError) Error() string {
	return fmt.Sprintf("primary ledger: %v", e.Err)
}

func (e *PrimaryLedgerError) Unwrap() error {
	return e.Err
}

// Writer creates one billing period's charge across both ledgers. Ledger
// clients are built per owner from resolved credentials; the writer holds no
// provider state of its own.
type Writer struct {
	creds        credentials.Resolver
	newPrimary   ledger.PrimaryFactory
	newSecondary ledger.SecondaryFactory
	charges      domain.ChargeStore
	publisher    events.Publisher
	logger       *slog.Logger
}

// NewWriter creates a dual-ledger invoice writer.
func NewWriter(
	creds credentials.Resolver,
	newPrimary ledger.PrimaryFactory,
	newSecondary ledger.SecondaryFactory,
	charges domain.ChargeStore,
	publisher events.Publisher,
	logger *slog.Logger,
) *Writer {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Writer{
		creds:        creds,
		newPrimary:   newPrimary,
		newSecondary: newSecondary,
		charges:      charges,
		publisher:    publisher,
		logger:       logger,
	}
}

// Bill runs the full per-lease sequence for one period:
//
//  1. resolve collections-ledger credentials (credentials.ErrNotFound skips
//     the lease);
//  2. create and send the invoice in the collections ledger; on failure
//     nothing is written locally and the next tick retries from scratch;
//  3. insert the local charge record with the primary reference, before any
//     mirror attempt, so its existence alone blocks re-billing;
//  4. best-effort mirror into the accounting ledger;
//  5. record the mirror reference when step 4 succeeded.
//
// A nil error with charge.Synced() == false means the charge stands with the
// mirror pending; the repair pass can finish it later.
func (w *Writer) Bill(ctx context.Context, lease *domain.Lease, period domain.BillingPeriod, amount decimal.Decimal, dueDate time.Time) (*domain.Charge, error) {
	primaryCreds, err := w.creds.Get(ctx, lease.OwnerID, credentials.ProviderStripe)
	if err != nil {
		return nil, fmt.Errorf("resolving collections credentials: %w", err)
	}

	if lease.PrimaryPayeeRef == "" {
		return nil, fmt.Errorf("lease %s has no collections payee: %w", lease.ID, credentials.ErrNotFound)
	}

	description := chargeDescription(lease, period)
	primary := w.newPrimary(primaryCreds.APIKey)

	primaryRef, err := primary.CreateCharge(ctx, ledger.ChargeParams{
		PayeeRef:    lease.PrimaryPayeeRef,
		Description: description,
		Amount:      amount,
		DueDate:     dueDate,
	})
	if err != nil {
		return nil, &PrimaryLedgerError{Err: err}
	}

	if err := primary.Send(ctx, primaryRef); err != nil {
		return nil, &PrimaryLedgerError{Err: err}
	}

	charge := &domain.Charge{
		ID:         uuid.New(),
		LeaseID:    lease.ID,
		Period:     period,
		Amount:     amount,
		DueDate:    dueDate,
		Status:     domain.ChargeStatusPending,
		PrimaryRef: primaryRef,
	}

	// The local write must land before the mirror attempt: if the process
	// dies here, this row is what stops a duplicate collections invoice.
	if err := w.charges.InsertCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("inserting charge for %s %s: %w", lease.ID, period, err)
	}

	if err := w.Mirror(ctx, lease, charge); err != nil {
		w.logger.Warn("accounting mirror failed, charge stands unsynced",
			"lease_id", lease.ID,
			"charge_id", charge.ID,
			"period", period.String(),
			"error", err,
		)
	}

	w.publisher.PublishChargeCreated(ctx, events.ChargeCreated{
		ChargeID:   charge.ID,
		LeaseID:    lease.ID,
		OwnerID:    lease.OwnerID,
		Period:     period.String(),
		Amount:     amount.StringFixed(2),
		PrimaryRef: primaryRef,
		Synced:     charge.Synced(),
		OccurredAt: time.Now().UTC(),
	})

	return charge, nil
}

// Mirror runs only the accounting-ledger steps for an existing charge:
// ensure the payee, create the mirrored charge, record the reference.
// Idempotent from the caller's point of view; also used by the repair pass.
func (w *Writer) Mirror(ctx context.Context, lease *domain.Lease, charge *domain.Charge) error {
	secondaryCreds, err := w.creds.Get(ctx, lease.OwnerID, credentials.ProviderQuickBooks)
	if err != nil {
		return fmt.Errorf("resolving accounting credentials: %w", err)
	}

	secondary := w.newSecondary(secondaryCreds.APIKey, secondaryCreds.RealmID)

	payeeRef, err := secondary.EnsurePayee(ctx, ledger.PayeeDetails{
		Name:  lease.TenantName,
		Email: lease.TenantEmail,
	})
	if err != nil {
		return fmt.Errorf("ensuring accounting payee: %w", err)
	}

	secondaryRef, err := secondary.CreateCharge(ctx, ledger.MirrorChargeParams{
		PayeeRef:    payeeRef,
		Description: chargeDescription(lease, charge.Period),
		Amount:      charge.Amount,
		DueDate:     charge.DueDate,
		ExternalRef: charge.PrimaryRef,
	})
	if err != nil {
		return fmt.Errorf("mirroring charge: %w", err)
	}

	if err := w.charges.SetSecondaryRef(ctx, charge.ID, secondaryRef); err != nil {
		return fmt.Errorf("recording accounting reference: %w", err)
	}

	charge.SecondaryRef = secondaryRef
	return nil
}

// chargeDescription builds the invoice line description from the property
// address and billing period.
func chargeDescription(lease *domain.Lease, period domain.BillingPeriod) string {
	address := lease.PropertyAddress
	if lease.Unit != "" {
		address = fmt.Sprintf("%s, Unit %s", address, lease.Unit)
	}
	return fmt.Sprintf("Rent for %s (%s %d)", address, period.Month, period.Year)
}
