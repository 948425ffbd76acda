// Package metrics provides observability for the priority module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the priority module's Prometheus collectors.
type Metrics struct {
	// Individual beneficiaries re-scored (single and batch runs).
	BeneficiariesRescored prometheus.Counter

	// Escalations detected across all runs.
	Escalations prometheus.Counter

	// Per-record failures inside batch runs.
	RescoreErrors prometheus.Counter

	// Batch runs by outcome ("completed" / "skipped" / "aborted").
	BatchRuns *prometheus.CounterVec

	// Duration of full batch re-scoring runs.
	BatchDuration prometheus.Histogram

	// Urgent cases found by the most recent scan.
	UrgentCases prometheus.Gauge
}

// New creates and registers all priority metrics.
func New() *Metrics {
	return &Metrics{
		BeneficiariesRescored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aidchain_priority_beneficiaries_rescored_total",
			Help: "Total beneficiaries re-scored",
		}),

		Escalations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aidchain_priority_escalations_total",
			Help: "Total priority escalations detected",
		}),

		RescoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aidchain_priority_rescore_errors_total",
			Help: "Total per-record failures during batch re-scoring",
		}),

		BatchRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aidchain_priority_batch_runs_total",
			Help: "Total batch re-scoring runs by outcome",
		}, []string{"outcome"}),

		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aidchain_priority_batch_duration_seconds",
			Help:    "Duration of full batch re-scoring runs",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		UrgentCases: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "aidchain_priority_urgent_cases",
			Help: "Urgent cases found by the most recent urgent scan",
		}),
	}
}

// IncRescored records one re-scored beneficiary.
func (m *Metrics) IncRescored() {
	if m != nil {
		m.BeneficiariesRescored.Inc()
	}
}

// IncEscalation records one detected escalation.
func (m *Metrics) IncEscalation() {
	if m != nil {
		m.Escalations.Inc()
	}
}

// IncRescoreError records one per-record batch failure.
func (m *Metrics) IncRescoreError() {
	if m != nil {
		m.RescoreErrors.Inc()
	}
}

// ObserveBatchRun records the outcome and duration of a batch run.
func (m *Metrics) ObserveBatchRun(outcome string, duration time.Duration) {
	if m != nil {
		m.BatchRuns.WithLabelValues(outcome).Inc()
		if outcome == "completed" {
			m.BatchDuration.Observe(duration.Seconds())
		}
	}
}

// SetUrgentCases records the size of the latest urgent snapshot.
func (m *Metrics) SetUrgentCases(count int) {
	if m != nil {
		m.UrgentCases.Set(float64(count))
	}
}
