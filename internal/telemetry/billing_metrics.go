package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics holds Prometheus metrics for billing-run observability.
type BillingMetrics struct {
	// Batch runs
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LeasesEvaluated prometheus.Counter

	// Per-lease outcomes, labeled by outcome status
	Outcomes *prometheus.CounterVec

	// Charges
	ChargesCreated  prometheus.Counter
	ChargeAmount    prometheus.Histogram
	UnsyncedCharges prometheus.Counter

	// Repair pass
	RepairsAttempted prometheus.Counter
	RepairsSucceeded prometheus.Counter
}

// NewBillingMetrics creates and registers billing metrics on the given
// registerer. Tests pass a fresh registry to avoid collisions.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	factory := promauto.With(reg)

	return &BillingMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_runs_total",
				Help:      "Total billing batch runs by result",
			},
			[]string{"result"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rentroll",
				Name:      "billing_run_duration_seconds",
				Help:      "Billing batch run duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		LeasesEvaluated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_leases_evaluated_total",
				Help:      "Total leases evaluated across all runs",
			},
		),
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_lease_outcomes_total",
				Help:      "Per-lease billing outcomes by status",
			},
			[]string{"status"},
		),
		ChargesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_charges_created_total",
				Help:      "Total charge records created",
			},
		),
		ChargeAmount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rentroll",
				Name:      "billing_charge_amount_dollars",
				Help:      "Charge amounts in dollars",
				Buckets:   []float64{500, 1000, 1500, 2000, 3000, 5000, 10000},
			},
		),
		UnsyncedCharges: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_unsynced_charges_total",
				Help:      "Charges created without a completed accounting mirror",
			},
		),
		RepairsAttempted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_repairs_attempted_total",
				Help:      "Secondary-ledger repair attempts",
			},
		),
		RepairsSucceeded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rentroll",
				Name:      "billing_repairs_succeeded_total",
				Help:      "Secondary-ledger repairs that completed the mirror",
			},
		),
	}
}
