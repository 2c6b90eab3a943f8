// Package metrics provides Prometheus metrics for monitoring the timer engine.
package metrics

import (
	"time"

	"github.com/nadmax/tempo/internal/timer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TimersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_timers_created_total",
			Help: "Total number of timers created",
		},
		[]string{"category"},
	)
	TimerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_timer_transitions_total",
			Help: "Total number of timer state changes by operation",
		},
		[]string{"operation", "category"},
	)
	TimerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempo_timer_ticks_total",
			Help: "Total number of one-second decrements applied",
		},
	)
	StaleTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempo_stale_ticks_total",
			Help: "Ticks ignored because the timer was no longer running under that driver",
		},
	)
	TimersCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_timers_completed_total",
			Help: "Total number of timers that counted down to zero",
		},
		[]string{"category"},
	)
	HalfwayAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_halfway_alerts_total",
			Help: "Total number of halfway alerts fired",
		},
		[]string{"category"},
	)
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_notification_failures_total",
			Help: "Total number of notifications a sink failed to deliver",
		},
		[]string{"kind"},
	)
	PersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_persist_failures_total",
			Help: "Total number of document writes that failed",
		},
		[]string{"document"},
	)
	PersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempo_persist_duration_seconds",
			Help:    "Whole-document write latency in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"document"},
	)
	TimersByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tempo_timers",
			Help: "Current number of timers by status and category",
		},
		[]string{"status", "category"},
	)
	ActiveDrivers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempo_active_drivers",
			Help: "Number of currently running timer drivers",
		},
	)
	HistoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempo_history_entries",
			Help: "Current number of entries in the completion history",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordTimerCreated(category string) {
	TimersCreated.WithLabelValues(category).Inc()
}

func RecordTransition(operation, category string) {
	TimerTransitions.WithLabelValues(operation, category).Inc()
}

func RecordTick() {
	TimerTicks.Inc()
}

func RecordStaleTick() {
	StaleTicks.Inc()
}

func RecordTimerCompleted(category string) {
	TimersCompleted.WithLabelValues(category).Inc()
}

func RecordHalfwayAlert(category string) {
	HalfwayAlerts.WithLabelValues(category).Inc()
}

func RecordNotificationFailure(kind string) {
	NotificationFailures.WithLabelValues(kind).Inc()
}

func RecordPersist(document string, duration time.Duration, err error) {
	PersistDuration.WithLabelValues(document).Observe(duration.Seconds())
	if err != nil {
		PersistFailures.WithLabelValues(document).Inc()
	}
}

func UpdateTimerGauges(timers []timer.Timer) {
	TimersByStatus.Reset()
	for _, t := range timers {
		TimersByStatus.WithLabelValues(string(t.Status), t.Category).Inc()
	}
}

func UpdateActiveDrivers(count int) {
	ActiveDrivers.Set(float64(count))
}

func UpdateHistoryEntries(count int) {
	HistoryEntries.Set(float64(count))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
