// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntelligenceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelligence_requests_total",
			Help: "Total number of aggregated context requests",
		},
		[]string{"bot_type", "cache_result"},
	)

	IntelligenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelligence_request_duration_seconds",
			Help:    "Duration of aggregated context assembly in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1},
		},
		[]string{"bot_type"},
	)

	ProducerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelligence_producer_failures_total",
			Help: "Total number of producer failures substituted with neutral values",
		},
		[]string{"producer", "reason"},
	)

	ProducerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelligence_producer_duration_seconds",
			Help:    "Duration of individual producer calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.3},
		},
		[]string{"producer"},
	)

	HandoffPreservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_preservations_total",
			Help: "Total number of intelligence snapshot preservation attempts",
		},
		[]string{"target_bot", "status"},
	)

	HandoffRetrievals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_retrievals_total",
			Help: "Total number of preserved snapshot retrieval attempts",
		},
		[]string{"result"},
	)

	HandoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handoff_operation_duration_seconds",
			Help:    "Duration of handoff preservation and retrieval in seconds",
			Buckets: []float64{0.005, 0.01, 0.03, 0.05, 0.1, 0.25},
		},
		[]string{"operation"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelligence_event_publish_failures_total",
			Help: "Total number of swallowed event publish failures",
		},
		[]string{"event_type"},
	)
)
