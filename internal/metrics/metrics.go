// Package metrics exposes Prometheus collectors for the sync and notification loops.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calnotice_sync_cycles_total",
		Help: "Total number of sync passes by result.",
	}, []string{"result"})

	reconciledEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calnotice_reconciled_events_total",
		Help: "Events processed by the reconciliation engine by operation.",
	}, []string{"operation"})

	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calnotice_token_refresh_total",
		Help: "OAuth token refresh attempts by result.",
	}, []string{"result"})

	notificationsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calnotice_notifications_fired_total",
		Help: "Alerts triggered for due events.",
	})

	alertFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calnotice_alert_failures_total",
		Help: "Alerts whose delivery reported an error.",
	})

	persistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calnotice_persistence_errors_total",
		Help: "Store write failures by operation.",
	}, []string{"operation"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calnotice_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SyncCycle counts one sync pass. result is "ok", "unauthorized" or "error".
func SyncCycle(result string) {
	syncCycles.WithLabelValues(result).Inc()
}

// Reconciled adds n events for the given operation ("create", "update", "skip").
func Reconciled(operation string, n int) {
	if n <= 0 {
		return
	}
	reconciledEvents.WithLabelValues(operation).Add(float64(n))
}

// TokenRefresh counts a refresh attempt.
func TokenRefresh(result string) {
	tokenRefreshes.WithLabelValues(result).Inc()
}

func NotificationFired() {
	notificationsFired.Inc()
}

func AlertFailed() {
	alertFailures.Inc()
}

// PersistenceError counts a failed store write.
func PersistenceError(operation string) {
	persistenceErrors.WithLabelValues(operation).Inc()
}

// ObserveDBLatency records database latency for a given operation.
func ObserveDBLatency(operation string, start time.Time) {
	dbLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
