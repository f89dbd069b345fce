// Package metrics provides Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "borsawire"

var (
	// FetchTotal counts HTTP fetch attempts by source and outcome (ok, retry, failed).
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of fetch attempts",
		},
		[]string{"source", "outcome"},
	)

	// FetchDuration measures single request latency.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	// RunsTotal counts source runs by final state.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of source runs",
		},
		[]string{"source", "state"},
	)

	// RunDuration measures a whole source run.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of source runs in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	// RecordsTotal counts records by pipeline stage (scraped, new, saved, published).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Total number of records passing each pipeline stage",
		},
		[]string{"source", "stage"},
	)
)

// RecordFetch records one fetch attempt
func RecordFetch(source, outcome string, seconds float64) {
	FetchTotal.WithLabelValues(source, outcome).Inc()
	if seconds > 0 {
		FetchDuration.WithLabelValues(source).Observe(seconds)
	}
}

// RecordRun records a completed source run
func RecordRun(source, state string, seconds float64) {
	RunsTotal.WithLabelValues(source, state).Inc()
	RunDuration.WithLabelValues(source).Observe(seconds)
}

// AddRecords adds n records to the given stage counter
func AddRecords(source, stage string, n int) {
	if n <= 0 {
		return
	}
	RecordsTotal.WithLabelValues(source, stage).Add(float64(n))
}

// Handler returns an http.Handler exposing Prometheus metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
