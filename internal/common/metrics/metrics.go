// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionPhases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_phases_total",
			Help: "Total number of submission phases entered",
		},
		[]string{"phase"},
	)

	SubmissionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_completed_total",
			Help: "Total number of submissions reaching the Sent state",
		},
		[]string{"chain"},
	)

	SubmissionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_failed_total",
			Help: "Total number of submissions ending in an error state",
		},
		[]string{"phase", "error_code"},
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "submission_duration_seconds",
			Help:    "Duration of a full submission attempt in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"outcome"},
	)

	SubmissionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submissions_in_flight",
			Help: "Number of submissions currently in progress",
		},
	)
)
