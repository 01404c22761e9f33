package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the logger runs.
type Metrics struct {
	FeedFetchErrors *prometheus.CounterVec // labels: feed={nws,nws_cli,accuweather}
	RowsAppended    *prometheus.CounterVec // labels: kind={forecast,actual}, source
	RowsSkipped     *prometheus.CounterVec // labels: reason={unchanged,frozen,after_cutoff,outside_window,already_logged,no_data}
	ParseFailures   prometheus.Counter
	BiasFrozen      prometheus.Counter
	SnapshotsSent   *prometheus.CounterVec // labels: record_type, outcome={success,error,skipped}
	RunnerRunning   prometheus.Gauge

	TaskDuration *prometheus.HistogramVec // labels: task
}

// NewMetrics creates and registers all collectors with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetchErrors,
		m.RowsAppended,
		m.RowsSkipped,
		m.ParseFailures,
		m.BiasFrozen,
		m.SnapshotsSent,
		m.RunnerRunning,
		m.TaskDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_logger",
			Name:      "feed_fetch_errors_total",
			Help:      "Upstream feed fetch failures by feed.",
		}, []string{"feed"}),
		RowsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_logger",
			Name:      "rows_appended_total",
			Help:      "Log rows appended by kind and source.",
		}, []string{"kind", "source"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_logger",
			Name:      "rows_skipped_total",
			Help:      "Captures skipped by dedup, freeze, or gating reason.",
		}, []string{"reason"}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_logger",
			Name:      "bulletin_parse_failures_total",
			Help:      "Bulletin sections with no usable MAXIMUM reading.",
		}),
		BiasFrozen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_logger",
			Name:      "bias_snapshots_frozen_total",
			Help:      "One-time bias-corrected prediction freezes written.",
		}),
		SnapshotsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_logger",
			Name:      "prediction_snapshots_total",
			Help:      "Prediction snapshots published by record type and outcome.",
		}, []string{"record_type", "outcome"}),
		RunnerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast_logger",
			Name:      "runner_running",
			Help:      "1 while a task batch is executing, 0 otherwise.",
		}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forecast_logger",
			Name:      "task_duration_seconds",
			Help:      "Duration of one task execution including feed I/O.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
	}
}
