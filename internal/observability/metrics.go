package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the fetch pipelines, the file
// cache, and the scheduler.
type Metrics struct {
	FetchAttempts  *prometheus.CounterVec   // labels: type, tier, outcome={success,failure}
	FetchDuration  *prometheus.HistogramVec // labels: type
	Placeholders   *prometheus.CounterVec   // labels: type
	CacheTrimmed   *prometheus.CounterVec   // labels: type
	SchedulerSkips *prometheus.CounterVec   // labels: type
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventdash",
			Name:      "fetch_attempts_total",
			Help:      "Pipeline tier attempts by data type, tier, and outcome.",
		}, []string{"type", "tier", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventdash",
			Name:      "fetch_duration_seconds",
			Help:      "End-to-end pipeline run duration per data type.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"type"}),
		Placeholders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventdash",
			Name:      "placeholder_results_total",
			Help:      "Placeholder substitutions after all real tiers failed.",
		}, []string{"type"}),
		CacheTrimmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventdash",
			Name:      "cache_entries_trimmed_total",
			Help:      "Cache files deleted by retention trimming.",
		}, []string{"type"}),
		SchedulerSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventdash",
			Name:      "scheduler_skipped_runs_total",
			Help:      "Periodic triggers skipped because the previous run was still in flight.",
		}, []string{"type"}),
	}
}

// NewMetrics creates and registers all instruments with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchDuration,
		m.Placeholders,
		m.CacheTrimmed,
		m.SchedulerSkips,
	)
	return m
}

// NewMetricsForTesting creates unregistered instruments so parallel tests
// never hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
