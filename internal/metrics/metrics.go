// Package metrics exposes Prometheus counters for the session engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeGameOver = "game_over"
	OutcomeFailed   = "failed"
	OutcomeStale    = "stale"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_turns_total",
			Help: "Total number of submitted turns by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_turn_duration_seconds",
			Help:    "Narrative turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	saveOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_save_operations_total",
			Help: "Total number of save repository operations",
		},
		[]string{"op", "status"},
	)

	quarantinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_quarantines_total",
			Help: "Total number of corrupted save collections quarantined",
		},
	)

	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_save_evictions_total",
			Help: "Total number of save slots evicted by the slot cap",
		},
	)

	generationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_generation_calls_total",
			Help: "Total number of generation service calls",
		},
		[]string{"op", "status"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_generation_duration_seconds",
			Help:    "Generation service call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			turnDuration,
			saveOpsTotal,
			quarantinesTotal,
			evictionsTotal,
			generationCallsTotal,
			generationDuration,
		)
	})
}

// Handler returns an HTTP handler for Prometheus metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// RecordTurn records one turn. kind is turn, finalize, quick_start or fate.
func RecordTurn(kind, outcome string, duration time.Duration) {
	turnsTotal.WithLabelValues(kind, outcome).Inc()
	if outcome != OutcomeStale {
		turnDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// RecordSaveOp records a save repository operation.
func RecordSaveOp(op string, err error) {
	saveOpsTotal.WithLabelValues(op, status(err)).Inc()
}

// RecordQuarantine counts a quarantined collection.
func RecordQuarantine() {
	quarantinesTotal.Inc()
}

// RecordEvictions counts evicted save slots.
func RecordEvictions(n int) {
	if n > 0 {
		evictionsTotal.Add(float64(n))
	}
}

// RecordGeneration records a generation service call.
func RecordGeneration(op string, err error, duration time.Duration) {
	generationCallsTotal.WithLabelValues(op, status(err)).Inc()
	generationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
