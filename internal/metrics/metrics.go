// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AnalyticsPathTotal counts analytics computations by the path that
	// produced the result: "native" (storage-side reducers) or "fallback"
	// (recomputed from raw trades).
	AnalyticsPathTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketboard_analytics_path_total",
		Help: "Analytics computations by operation and aggregation path",
	}, []string{"operation", "path"})

	// AnalyticsDegradedTotal counts analytics requests answered with an
	// empty result because storage failed.
	AnalyticsDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketboard_analytics_degraded_total",
		Help: "Analytics results replaced by an empty result after a storage failure",
	}, []string{"operation"})

	AnalyticsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketboard_analytics_duration_seconds",
		Help:    "Duration of analytics computations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	TradesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketboard_trades_recorded_total",
		Help: "Trades appended to the trade log",
	})
)

// ObservePath records which aggregation path served operation.
func ObservePath(operation, path string) {
	AnalyticsPathTotal.WithLabelValues(operation, path).Inc()
}

// ObserveDegraded records a storage failure answered with an empty result.
func ObserveDegraded(operation string) {
	AnalyticsDegradedTotal.WithLabelValues(operation).Inc()
}

// NewTimer starts a duration observation for operation. Call
// ObserveDuration on the result when the computation ends.
func NewTimer(operation string) *prometheus.Timer {
	return prometheus.NewTimer(AnalyticsDuration.WithLabelValues(operation))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
