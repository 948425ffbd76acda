// Package metrics provides observability for the ledger module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger module's Prometheus collectors.
type Metrics struct {
	// Blocks appended, by transaction type.
	BlocksAppended *prometheus.CounterVec

	// Optimistic append retries after a block-number conflict.
	AppendConflicts prometheus.Counter

	// Appends that failed after exhausting retries.
	AppendFailures prometheus.Counter

	// Full chain verification runs by result ("valid" / "invalid" / "error").
	ChainVerifications *prometheus.CounterVec

	// Duration of full chain verification scans.
	ChainVerifyDuration prometheus.Histogram
}

// New creates and registers all ledger metrics.
func New() *Metrics {
	return &Metrics{
		BlocksAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aidchain_ledger_blocks_appended_total",
			Help: "Total blocks appended to the ledger by transaction type",
		}, []string{"transaction_type"}),

		AppendConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aidchain_ledger_append_conflicts_total",
			Help: "Total optimistic append retries caused by concurrent writers",
		}),

		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aidchain_ledger_append_failures_total",
			Help: "Total appends that failed after exhausting conflict retries",
		}),

		ChainVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aidchain_ledger_chain_verifications_total",
			Help: "Total full-chain verification runs by result",
		}, []string{"result"}),

		ChainVerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aidchain_ledger_chain_verify_duration_seconds",
			Help:    "Duration of full-chain verification scans",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncBlocksAppended records a successful append.
func (m *Metrics) IncBlocksAppended(txType string) {
	if m != nil {
		m.BlocksAppended.WithLabelValues(txType).Inc()
	}
}

// IncAppendConflict records one conflict-triggered retry.
func (m *Metrics) IncAppendConflict() {
	if m != nil {
		m.AppendConflicts.Inc()
	}
}

// IncAppendFailure records an append that surfaced an error to the caller.
func (m *Metrics) IncAppendFailure() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

// ObserveChainVerification records one full-chain scan.
func (m *Metrics) ObserveChainVerification(result string, d time.Duration) {
	if m != nil {
		m.ChainVerifications.WithLabelValues(result).Inc()
		m.ChainVerifyDuration.Observe(d.Seconds())
	}
}
