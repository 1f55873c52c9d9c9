package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgepole/rentroll/internal/credentials"
	"github.com/lodgepole/rentroll/internal/domain"
	"github.com/lodgepole/rentroll/internal/ledger"
)

var (
	testPeriod  = domain.BillingPeriod{Month: time.March, Year: 2024}
	testDueDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	testAmount  = decimal.NewFromInt(1500)
)

func TestWriterBillPrimaryFailureWritesNothing(t *testing.T) {
	f := newFixture(nyMidnightMarch)
	owner := f.addOwner("America/New_York")
	lease := f.addLease(owner, "America/New_York", 1500)

	f.primary.CreateChargeFunc = func(ctx context.Context, params ledger.ChargeParams) (string, error) {
		return "", errors.New("rate limited")
	}

	_, err := f.writer.Bill(context.Background(), lease, testPeriod, testAmount, testDueDate)
	var primaryErr *PrimaryLedgerError
	if !errors.As(err, &primaryErr) {
		t.Fatalf("Bill error = %v, want *PrimaryLedgerError", err)
	}
	if f.charges.count() != 0 {
		t.Error("charge written despite the primary failure")
	}
	if len(f.secondary.CallLog) != 0 {
		t.Error("accounting ledger reached despite the primary failure")
	}
}

func TestWriterBillSendFailureWritesNothing(t *testing.T) {
	f := newFixture(nyMidnightMarch)
	owner := f.addOwner("America/New_York")
	lease := f.addLease(owner, "America/New_York", 1500)

	f.primary.SendFunc = func(ctx context.Context, chargeRef string) error {
		return errors.New("delivery failed")
	}

	_, err := f.writer.Bill(context.Background(), lease, testPeriod, testAmount, testDueDate)
	var primaryErr *PrimaryLedgerError
	if !errors.As(err, &primaryErr) {
		t.Fatalf("Bill error = %v, want *PrimaryLedgerError", err)
	}
	if f.charges.count() != 0 {
		t.Error("charge written despite the send failure")
	}
}

func TestWriterBillInsertsChargeBeforeMirror(t *testing.T) {
	f := newFixture(nyMidnightMarch)
	owner := f.addOwner("America/New_York")
	lease := f.addLease(owner, "America/New_York", 1500)

	// Observe from inside the first accounting call: the charge row must
	// already be durable when the mirror begins.
	var chargeVisible bool
	f.secondary.EnsurePayeeFunc = func(ctx context.Context, details ledger.PayeeDetails) (string, error) {
		_, err := f.charges.ChargeForPeriod(ctx, lease.ID, testPeriod)
		chargeVisible = err == nil
		return "cust_1", nil
	}

	charge, err := f.writer.Bill(context.Background(), lease, testPeriod, testAmount, testDueDate)
	if err != nil {
		t.Fatalf("Bill: %v", err)
	}
	if !chargeVisible {
		t.Error("mirror started before the charge row was written")
	}
	if !charge.Synced() {
		t.Error("charge not synced after a clean mirror")
	}
}

func TestWriterBillMissingPayeeRef(t *testing.T) {
	f := newFixture(nyMidnightMarch)
	owner := f.addOwner("America/New_York")
	lease := f.addLease(owner, "America/New_York", 1500)
	lease.PrimaryPayeeRef = ""

	_, err := f.writer.Bill(context.Background(), lease, testPeriod, testAmount, testDueDate)
	if !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("Bill error = %v, want credentials.ErrNotFound", err)
	}
	if f.primary.CreateCount() != 0 {
		t.Error("lease without a payee reached the primary ledger")
	}
}

func TestWriterBillDescription(t *testing.T) {
	f := newFixture(nyMidnightMarch)
	owner := f.addOwner("America/New_York")
	lease := f.addLease(owner, "America/New_York", 1500)

	charge, err := f.writer.Bill(context.Background(), lease, testPeriod, testAmount, testDueDate)
	if err != nil {
		t.Fatalf("Bill: %v", err)
	}

	params, ok := f.primary.Charges[charge.PrimaryRef]
	if !ok {
		t.Fatalf("no primary charge recorded for %s", charge.PrimaryRef)
	}
	want := "Rent for 12 Elm St, Unit 2B (March 2024)"
	if params.Description != want {
		t.Errorf("description = %q, want %q", params.Description, want)
	}
	if !params.DueDate.Equal(testDueDate) {
		t.Errorf("due date = %s, want %s", params.DueDate, testDueDate)
	}
}

func TestWriterMirrorRecordsReference(t *testing.T) {
	f := newFixture(nyMidnightMarch)
	owner := f.addOwner("America/New_York")
	lease := f.addLease(owner, "America/New_York", 1500)

	charge := &domain.Charge{
		ID:         uuid.New(),
		LeaseID:    lease.ID,
		Period:     testPeriod,
		Amount:     testAmount,
		DueDate:    testDueDate,
		Status:     domain.ChargeStatusPending,
		PrimaryRef: "in_abc",
	}
	f.charges.add(t, charge)

	if err := f.writer.Mirror(context.Background(), lease, charge); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if charge.SecondaryRef == "" {
		t.Fatal("mirror left no secondary reference on the charge")
	}

	stored := f.charges.get(t, lease.ID, testPeriod)
	if stored.SecondaryRef != charge.SecondaryRef {
		t.Errorf("stored secondary ref = %q, want %q", stored.SecondaryRef, charge.SecondaryRef)
	}
	params := f.secondary.Mirrored[charge.SecondaryRef]
	if params.ExternalRef != "in_abc" {
		t.Errorf("mirror external ref = %q, want the primary reference", params.ExternalRef)
	}
}
