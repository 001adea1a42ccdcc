// Package metrics defines the Prometheus instrumentation for the split flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionsTotal counts receipt extraction attempts by outcome.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bilbul",
		Name:      "extractions_total",
		Help:      "Receipt extraction attempts by outcome.",
	}, []string{"outcome"})

	// SuggestionsTotal counts AI split suggestion attempts by outcome.
	SuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bilbul",
		Name:      "suggestions_total",
		Help:      "AI split suggestion attempts by outcome.",
	}, []string{"outcome"})

	// SplitsCompletedTotal counts completed splits by mode (simple or manual).
	SplitsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bilbul",
		Name:      "splits_completed_total",
		Help:      "Completed splits by mode.",
	}, []string{"mode"})

	// SessionsActive tracks the number of live split sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bilbul",
		Name:      "sessions_active",
		Help:      "Number of live split sessions.",
	})

	// ExternalCallDuration observes the latency of AI collaborator calls.
	ExternalCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bilbul",
		Name:      "external_call_duration_seconds",
		Help:      "Latency of extraction and suggestion calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"call"})
)

// Outcome labels for the attempt counters.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
