// Package metrics exposes the Prometheus collectors of the world storage service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "worldstore",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldstore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "worldstore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	storageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldstore",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by namespace, operation and result.",
		},
		[]string{"namespace", "operation", "result"},
	)

	quotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldstore",
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Upserts rejected by storage limits.",
		},
		[]string{"namespace", "reason"},
	)

	authorizationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldstore",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization decisions by policy and result.",
		},
		[]string{"policy", "result"},
	)

	permissionFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "worldstore",
			Subsystem: "permissions",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of world permission lookups against the content server.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		storageOperations,
		quotaRejections,
		authorizationDecisions,
		permissionFetchDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InFlight tracks the number of requests being served.
func InFlight(delta float64) {
	httpInFlight.Add(delta)
}

// RecordHTTPRequest records one completed request. path should be a route
// template, not the raw URL, to keep label cardinality bounded.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStorageOperation records a storage call outcome.
func RecordStorageOperation(namespace, operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storageOperations.WithLabelValues(namespace, operation, result).Inc()
}

// RecordQuotaRejection records a rejected upsert. reason is "value" or "total".
func RecordQuotaRejection(namespace, reason string) {
	quotaRejections.WithLabelValues(namespace, reason).Inc()
}

// RecordAuthorization records a gate decision.
func RecordAuthorization(policy string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	authorizationDecisions.WithLabelValues(policy, result).Inc()
}

// RecordPermissionFetch records a permission lookup. outcome is "ok",
// "unavailable" or "upstream_error".
func RecordPermissionFetch(outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	permissionFetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
