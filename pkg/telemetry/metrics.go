package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for SourceSearches.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the aggregator's collectors.
type Metrics struct {
	SourceSearches *prometheus.CounterVec   // source, outcome
	SourceDuration *prometheus.HistogramVec // source
	RecordsEmitted *prometheus.CounterVec   // source
	RunDuration    prometheus.Histogram
	RunsInFlight   prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SourceSearches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lihee",
			Name:      "source_searches_total",
			Help:      "Data source searches by outcome.",
		}, []string{"source", "outcome"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lihee",
			Name:      "source_search_duration_seconds",
			Help:      "Time spent in a single data source search.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		RecordsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lihee",
			Name:      "records_emitted_total",
			Help:      "Books delivered to the response stream.",
		}, []string{"source"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lihee",
			Name:      "search_run_duration_seconds",
			Help:      "Wall time of a whole fan-out run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lihee",
			Name:      "search_runs_in_flight",
			Help:      "Fan-out runs currently executing.",
		}),
	}
}
