package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lodgepole/rentroll/internal/credentials"
	"github.com/lodgepole/rentroll/internal/domain"
	"github.com/lodgepole/rentroll/internal/events"
	"github.com/lodgepole/rentroll/internal/telemetry"
)

// Config holds runner configuration.
type Config struct {
	// MaxConcurrency bounds the per-lease worker pool.
	MaxConcurrency int

	// RepairGrace is how old an unsynced charge must be before the repair
	// pass retries its accounting mirror.
	RepairGrace time.Duration

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Runner drives one billing tick: select eligible owners by local midnight,
// load their billable leases, and push each lease through the dual-ledger
// writer, isolating per-lease failures from the batch.
type Runner struct {
	config    Config
	leases    domain.LeaseStore
	charges   domain.ChargeStore
	writer    *Writer
	publisher events.Publisher
	metrics   *telemetry.BillingMetrics
	logger    *slog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(
	leases domain.LeaseStore,
	charges domain.ChargeStore,
	writer *Writer,
	publisher events.Publisher,
	metrics *telemetry.BillingMetrics,
	config Config,
	logger *slog.Logger,
) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.RepairGrace <= 0 {
		config.RepairGrace = 6 * time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Runner{
		config:    config,
		leases:    leases,
		charges:   charges,
		writer:    writer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes one billing tick. The returned error is non-nil only when the
// store prevented the batch from running at all; every per-lease failure is
// captured in the summary instead.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := r.config.Now()
	now := start.UTC()

	zones, err := r.leases.ListOwnerZones(ctx)
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("fatal").Inc()
		return nil, domain.Unavailable(err, "billing.run", "failed to list owner zones")
	}

	eligible := EligibleOwners(now, zones, r.logger)
	if len(eligible) == 0 {
		r.metrics.RunsTotal.WithLabelValues("ok").Inc()
		r.logger.Debug("no owners at local midnight on the 1st", "tick", now)
		summary := &Summary{}
		// Empty ticks still publish so the event stream sees every run.
		r.publisher.PublishRunCompleted(ctx, events.RunCompleted{
			Duration:   time.Since(start).String(),
			OccurredAt: time.Now().UTC(),
		})
		return summary, nil
	}

	leases, err := r.leases.ListBillableLeases(ctx, eligible)
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("fatal").Inc()
		return nil, domain.Unavailable(err, "billing.run", "failed to list billable leases")
	}

	r.logger.Info("billing tick",
		"tick", now,
		"eligible_owners", len(eligible),
		"billable_leases", len(leases),
	)

	outcomes := make([]Outcome, len(leases))
	sem := make(chan struct{}, r.config.MaxConcurrency)
	var wg sync.WaitGroup

	for i := range leases {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = r.processLease(ctx, &leases[i], now)
		}(i)
	}
	wg.Wait()

	summary := &Summary{}
	for _, o := range outcomes {
		summary.Record(o)
		r.metrics.Outcomes.WithLabelValues(o.Status).Inc()
	}
	r.metrics.LeasesEvaluated.Add(float64(summary.Processed))
	r.metrics.RunsTotal.WithLabelValues("ok").Inc()
	r.metrics.RunDuration.Observe(time.Since(start).Seconds())

	r.publisher.PublishRunCompleted(ctx, events.RunCompleted{
		Processed:  summary.Processed,
		Succeeded:  summary.Succeeded,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		Duration:   time.Since(start).String(),
		OccurredAt: time.Now().UTC(),
	})

	r.logger.Info("billing tick complete",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"skipped_already_billed", summary.SkippedAlreadyBilled,
		"skipped_no_credentials", summary.SkippedNoCredentials,
		"failed", summary.Failed,
	)

	return summary, nil
}

// processLease runs the guard, resolver, and writer for one lease. Never
// panics out: any failure, recovered panic included, becomes an outcome.
func (r *Runner) processLease(ctx context.Context, lease *domain.Lease, now time.Time) (outcome Outcome) {
	outcome.LeaseID = lease.ID

	defer func() {
		if p := recover(); p != nil {
			outcome.Status = OutcomeFailed
			outcome.Kind = KindInternal
			outcome.Message = fmt.Sprintf("panic: %v", p)
			r.logger.Error("recovered panic while billing lease", "lease_id", lease.ID, "panic", p)
		}
	}()

	loc, err := time.LoadLocation(lease.Timezone)
	if err != nil {
		// The owner matched on a sibling lease's zone but this lease's own
		// zone is unusable. Surfaced in errors[] so the bad row gets fixed.
		outcome.Status = OutcomeFailed
		outcome.Kind = KindInvalidTimezone
		outcome.Message = fmt.Sprintf("invalid timezone %q", lease.Timezone)
		r.logger.Warn("lease has invalid timezone", "lease_id", lease.ID, "timezone", lease.Timezone)
		return outcome
	}

	local := now.In(loc)
	period := domain.PeriodFor(local)
	dueDate := period.DueDate(lease.RentDueDay)

	// Period guard: cheap pre-check. The insert's uniqueness constraint is
	// the real race barrier; this avoids ledger calls in the steady state.
	if existing, err := r.charges.ChargeForPeriod(ctx, lease.ID, period); err == nil {
		outcome.Status = OutcomeAlreadyBilled
		outcome.Kind = KindAlreadyBilled
		outcome.Message = fmt.Sprintf("charge %s exists for %s", existing.ID, period)
		return outcome
	} else if !errors.Is(err, domain.ErrChargeNotFound) {
		outcome.Status = OutcomeFailed
		outcome.Kind = KindStoreUnavailable
		outcome.Message = domain.ErrorMessage(err)
		return outcome
	}

	amount := domain.RentOnDate(lease.BaseRent, lease.Increases, dueDate)

	charge, err := r.writer.Bill(ctx, lease, period, amount, dueDate)
	if err != nil {
		return r.classifyBillError(lease, period, err)
	}

	r.metrics.ChargesCreated.Inc()
	amt, _ := charge.Amount.Float64()
	r.metrics.ChargeAmount.Observe(amt)
	if !charge.Synced() {
		r.metrics.UnsyncedCharges.Inc()
	}

	outcome.Status = OutcomeSucceeded
	outcome.Unsynced = !charge.Synced()
	return outcome
}

// classifyBillError maps a writer error onto the batch error taxonomy.
func (r *Runner) classifyBillError(lease *domain.Lease, period domain.BillingPeriod, err error) Outcome {
	outcome := Outcome{LeaseID: lease.ID}

	var primaryErr *PrimaryLedgerError
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		outcome.Status = OutcomeNoCredentials
		outcome.Kind = KindCredentialsMissing
		outcome.Message = "owner has not connected a collections integration"

	case errors.Is(err, domain.ErrChargeExists):
		// A concurrent worker or overlapping tick won the insert race. The
		// constraint keeps the charge record unique, which is the contract;
		// treated the same as already billed, never as a failure.
		outcome.Status = OutcomeAlreadyBilled
		outcome.Kind = KindAlreadyBilled
		outcome.Message = fmt.Sprintf("concurrent charge insert for %s", period)

	case errors.As(err, &primaryErr):
		outcome.Status = OutcomeFailed
		outcome.Kind = KindPrimaryLedger
		outcome.Message = primaryErr.Error()
		r.logger.Error("collections ledger write failed",
			"lease_id", lease.ID,
			"period", period.String(),
			"error", err,
		)

	case domain.ErrorCode(err) == domain.EUNAVAILABLE:
		outcome.Status = OutcomeFailed
		outcome.Kind = KindStoreUnavailable
		outcome.Message = domain.ErrorMessage(err)

	default:
		outcome.Status = OutcomeFailed
		outcome.Kind = KindInternal
		outcome.Message = err.Error()
	}

	return outcome
}

// Repair retries only the accounting mirror for charges whose secondary
// reference is still null after the grace period. Idempotent; primary-ledger
// state is never touched.
func (r *Runner) Repair(ctx context.Context) (*RepairSummary, error) {
	cutoff := r.config.Now().UTC().Add(-r.config.RepairGrace)

	charges, err := r.charges.ListUnsyncedCharges(ctx, cutoff)
	if err != nil {
		return nil, domain.Unavailable(err, "billing.repair", "failed to list unsynced charges")
	}

	summary := &RepairSummary{Scanned: len(charges)}

	for i := range charges {
		charge := &charges[i]
		r.metrics.RepairsAttempted.Inc()

		lease, err := r.leases.GetLease(ctx, charge.LeaseID)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, Outcome{
				LeaseID: charge.LeaseID,
				Status:  OutcomeFailed,
				Kind:    KindInternal,
				Message: fmt.Sprintf("lease lookup failed: %v", err),
			})
			continue
		}

		if err := r.writer.Mirror(ctx, lease, charge); err != nil {
			kind := KindSecondaryLedger
			if errors.Is(err, credentials.ErrNotFound) {
				kind = KindCredentialsMissing
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, Outcome{
				LeaseID: charge.LeaseID,
				Status:  OutcomeFailed,
				Kind:    kind,
				Message: err.Error(),
			})
			continue
		}

		r.metrics.RepairsSucceeded.Inc()
		summary.Repaired++
	}

	if summary.Scanned > 0 {
		r.logger.Info("repair pass complete",
			"scanned", summary.Scanned,
			"repaired", summary.Repaired,
			"failed", summary.Failed,
		)
	}

	return summary, nil
}
