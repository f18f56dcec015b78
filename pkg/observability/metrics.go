package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Aggregation metrics
	aggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanin_aggregations_total",
			Help: "Total number of aggregations by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	aggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanin_aggregation_duration_seconds",
			Help:    "Time from launch until the aggregate resolved",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"policy"},
	)

	aggregationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanin_aggregations_in_flight",
			Help: "Number of aggregates not yet resolved",
		},
	)

	// Operation metrics
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanin_operations_total",
			Help: "Total number of completed operations by policy and status",
		},
		[]string{"policy", "status"},
	)

	operationsAfterResolution = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanin_operations_after_resolution_total",
			Help: "Operations that completed after their aggregate had already resolved",
		},
		[]string{"policy"},
	)

	// Service metrics
	serviceCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanin_service_call_duration_seconds",
			Help:    "Service call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			aggregationsTotal,
			aggregationDuration,
			aggregationsInFlight,
			operationsTotal,
			operationsAfterResolution,
			serviceCallDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// AggregationStarted marks an aggregate as in flight
func AggregationStarted() {
	aggregationsInFlight.Inc()
}

// RecordAggregation records a resolved aggregate
func RecordAggregation(policy, outcome string, duration time.Duration) {
	aggregationsInFlight.Dec()
	aggregationsTotal.WithLabelValues(policy, outcome).Inc()
	aggregationDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// RecordOperation records a completed operation
func RecordOperation(policy, status string, late bool) {
	operationsTotal.WithLabelValues(policy, status).Inc()
	if late {
		operationsAfterResolution.WithLabelValues(policy).Inc()
	}
}

// RecordServiceCall records the latency of one service call
func RecordServiceCall(service string, duration time.Duration) {
	serviceCallDuration.WithLabelValues(service).Observe(duration.Seconds())
}
