// Package metrics exposes Prometheus collectors for approval mutations, the
// realtime hub and the dashboard HTTP surface.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	approvalMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specflow_approval_mutations_total",
			Help: "Total number of approval mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	approvalMutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specflow_approval_mutation_duration_seconds",
			Help:    "Approval mutation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	snapshotsCapturedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specflow_snapshots_captured_total",
			Help: "Total number of snapshots captured by trigger",
		},
		[]string{"trigger"},
	)

	hubSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "specflow_hub_subscribers",
			Help: "Number of active hub subscriptions by topic",
		},
		[]string{"topic"},
	)

	hubEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specflow_hub_events_total",
			Help: "Total number of hub events by topic and delivery result",
		},
		[]string{"topic", "result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordMutation records one approval store mutation.
func RecordMutation(operation string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	approvalMutationsTotal.WithLabelValues(operation, outcome).Inc()
	approvalMutationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordSnapshot counts a captured snapshot.
func RecordSnapshot(trigger string) {
	snapshotsCapturedTotal.WithLabelValues(trigger).Inc()
}

// SetSubscribers sets the number of subscriptions on topic.
func SetSubscribers(topic string, count int) {
	hubSubscribers.WithLabelValues(topic).Set(float64(count))
}

// RecordHubEvent counts an event delivery; result is "delivered" or "dropped".
func RecordHubEvent(topic, result string) {
	hubEventsTotal.WithLabelValues(topic, result).Inc()
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	status := "unknown"
	if statusCode >= 100 {
		status = strconv.Itoa(statusCode/100) + "xx"
	}
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
