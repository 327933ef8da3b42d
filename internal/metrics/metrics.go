package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReferralApplications counts referral attempts by outcome kind
	ReferralApplications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_referral_applications_total",
			Help: "Referral code applications by outcome",
		},
		[]string{"outcome"}, // committed or an error kind
	)

	// ReferralConflictRetries counts attempts restarted after a version conflict
	ReferralConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_referral_conflict_retries_total",
		Help: "Referral attempts restarted after an optimistic-concurrency conflict",
	})

	// LedgerEntries counts appended ledger entries
	LedgerEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_ledger_entries_total",
			Help: "Ledger entries appended by type and reason",
		},
		[]string{"type", "reason"},
	)

	// ReferralRepairs counts referrer credits deferred to reconciliation
	ReferralRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_referral_repairs_total",
			Help: "Referrer credits that failed inline, by kind",
		},
		[]string{"kind"},
	)

	// PendingRepairs tracks unresolved repairs after each reconciliation run
	PendingRepairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_referral_repairs_pending",
		Help: "Referrer credits still waiting for reconciliation",
	})

	// ReconcileRuns counts reconciliation runs by status
	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_reconcile_runs_total",
			Help: "Reconciliation runs by status",
		},
		[]string{"status"}, // success, failed
	)

	// StatsDrift counts referral counters that differed from the ledger
	StatsDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_referral_stats_drift_total",
		Help: "Referral statistics corrected by recomputation",
	})

	// ReconcileDuration tracks how long reconciliation runs take
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rewards_reconcile_duration_seconds",
		Help:    "Time taken by a reconciliation run",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordReferralOutcome records the outcome of one ApplyReferralCode call
func RecordReferralOutcome(outcome string) {
	ReferralApplications.WithLabelValues(outcome).Inc()
}

// RecordLedgerEntry records an appended ledger entry
func RecordLedgerEntry(txType, reason string) {
	LedgerEntries.WithLabelValues(txType, reason).Inc()
}

// RecordRepair records a deferred referrer credit
func RecordRepair(kind string) {
	ReferralRepairs.WithLabelValues(kind).Inc()
}

// RecordReconcileRun records a finished reconciliation run
func RecordReconcileRun(status string, seconds float64, pending int64) {
	ReconcileRuns.WithLabelValues(status).Inc()
	ReconcileDuration.Observe(seconds)
	PendingRepairs.Set(float64(pending))
}
