// Package metrics registers the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan cycles by result: ok, aborted, failed.
	ScanCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keepstreak_scan_cycles_total",
			Help: "Scan cycles run, by result",
		},
		[]string{"result"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keepstreak_scan_duration_seconds",
			Help:    "Duration of a scan cycle in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
	)

	FreezesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepstreak_freezes_consumed_total",
			Help: "Streak freezes consumed to backfill a missed day",
		},
	)

	InactivityFlags = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepstreak_inactivity_flags_total",
			Help: "Habits flagged as inactive",
		},
	)

	RemindersRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepstreak_reminders_raised_total",
			Help: "Daily reminder events published",
		},
	)

	// Dispatches by trigger and result: delivered, failed, duplicate.
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keepstreak_dispatches_total",
			Help: "Notification dispatches, by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	ComposeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepstreak_compose_fallbacks_total",
			Help: "Notifications sent with the fallback text",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keepstreak_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)
)

// RecordScan records the outcome and duration of one cycle.
func RecordScan(result string, d time.Duration) {
	ScanCycles.WithLabelValues(result).Inc()
	ScanDuration.Observe(d.Seconds())
}

// RecordDispatch counts one dispatch attempt.
func RecordDispatch(trigger, result string) {
	Dispatches.WithLabelValues(trigger, result).Inc()
}
