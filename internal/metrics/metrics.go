// Package metrics provides Prometheus metrics for queuekit.
// It counts messages flowing through each backend and times every adapter
// operation so slow brokers show up in dashboards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "queuekit"
)

// Result label values for MessagesReceivedTotal.
const (
	ResultMessage = "message"
	ResultEmpty   = "empty"
)

var (
	// MessagesSentTotal counts messages successfully handed to a backend.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent to a backend",
		},
		[]string{"backend"},
	)

	// MessagesReceivedTotal counts receive calls by outcome.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of receive calls, labeled by whether a message was returned",
		},
		[]string{"backend", "result"}, // result: message, empty
	)

	// OperationErrorsTotal counts failed adapter operations.
	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total number of failed adapter operations",
		},
		[]string{"backend", "op"},
	)

	// OperationDuration measures how long each adapter call takes.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of adapter operations in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "op"},
	)
)
