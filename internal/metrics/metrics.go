package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "percenseo"

var (
	// DialsTotal counts dial attempts by outcome ("placed" or "failed").
	DialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dials_total",
			Help:      "Total outbound dial attempts.",
		},
		[]string{"provider", "outcome"},
	)

	DialDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dial_request_duration_seconds",
			Help:      "Duration of call creation requests to the telephony provider.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CallbacksTotal counts terminal-status callbacks by reported call status.
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_received_total",
			Help:      "Total terminal-status callbacks received.",
		},
		[]string{"status"},
	)

	// CallbackFailures counts callbacks that could not be persisted or published.
	CallbackFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_failures_total",
			Help:      "Total terminal-status callbacks that failed to persist or publish.",
		},
		[]string{"stage"},
	)

	SurveyRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "survey_runs_total",
			Help:      "Total survey runs by final state.",
		},
		[]string{"state"},
	)
)
