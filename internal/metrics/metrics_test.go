package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/nadmax/tempo/internal/timer"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTimerCreated(t *testing.T) {
	TimersCreated.Reset()

	RecordTimerCreated("Workout")
	RecordTimerCreated("Workout")
	RecordTimerCreated("Kitchen")

	assert.Equal(t, 2.0, getCounterValue(t, TimersCreated, "Workout"))
	assert.Equal(t, 1.0, getCounterValue(t, TimersCreated, "Kitchen"))
}

func TestRecordTransition(t *testing.T) {
	TimerTransitions.Reset()

	tests := []struct {
		name      string
		operation string
		category  string
	}{
		{name: "start", operation: "start", category: "Workout"},
		{name: "pause", operation: "pause", category: "Workout"},
		{name: "reset", operation: "reset", category: "Kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordTransition(tt.operation, tt.category)

			count := getCounterValue(t, TimerTransitions, tt.operation, tt.category)
			assert.Equal(t, 1.0, count, "transition counter should be incremented")
		})
	}
}

func TestRecordTickAndStaleTick(t *testing.T) {
	before := readCounter(t, TimerTicks)
	RecordTick()
	RecordTick()
	assert.Equal(t, before+2, readCounter(t, TimerTicks))

	staleBefore := readCounter(t, StaleTicks)
	RecordStaleTick()
	assert.Equal(t, staleBefore+1, readCounter(t, StaleTicks))
}

func TestRecordTimerCompletedAndHalfway(t *testing.T) {
	TimersCompleted.Reset()
	HalfwayAlerts.Reset()

	RecordTimerCompleted("Study")
	RecordHalfwayAlert("Study")
	RecordHalfwayAlert("Study")

	assert.Equal(t, 1.0, getCounterValue(t, TimersCompleted, "Study"))
	assert.Equal(t, 2.0, getCounterValue(t, HalfwayAlerts, "Study"))
}

func TestRecordNotificationFailure(t *testing.T) {
	NotificationFailures.Reset()

	RecordNotificationFailure("completion")

	assert.Equal(t, 1.0, getCounterValue(t, NotificationFailures, "completion"))
}

func TestRecordPersist(t *testing.T) {
	PersistFailures.Reset()
	PersistDuration.Reset()

	RecordPersist("timers", 2*time.Millisecond, nil)
	RecordPersist("timers", 3*time.Millisecond, errors.New("write failed"))

	assert.Equal(t, 1.0, getCounterValue(t, PersistFailures, "timers"))

	metric := getHistogramMetric(t, PersistDuration, "timers")
	assert.Equal(t, uint64(2), metric.Histogram.GetSampleCount())
	assert.InDelta(t, 0.005, metric.Histogram.GetSampleSum(), 1e-9)
}

func TestUpdateTimerGauges(t *testing.T) {
	TimersByStatus.Reset()

	UpdateTimerGauges([]timer.Timer{
		{Category: "Workout", Status: timer.StatusRunning},
		{Category: "Workout", Status: timer.StatusRunning},
		{Category: "Workout", Status: timer.StatusCompleted},
		{Category: "Kitchen", Status: timer.StatusPaused},
	})

	assert.Equal(t, 2.0, getGaugeValue(t, TimersByStatus, string(timer.StatusRunning), "Workout"))
	assert.Equal(t, 1.0, getGaugeValue(t, TimersByStatus, string(timer.StatusCompleted), "Workout"))
	assert.Equal(t, 1.0, getGaugeValue(t, TimersByStatus, string(timer.StatusPaused), "Kitchen"))
}

func TestUpdateTimerGauges_Reset(t *testing.T) {
	TimersByStatus.Reset()

	UpdateTimerGauges([]timer.Timer{{Category: "Old", Status: timer.StatusPaused}})
	UpdateTimerGauges([]timer.Timer{{Category: "New", Status: timer.StatusPaused}})

	assert.Equal(t, 1.0, getGaugeValue(t, TimersByStatus, string(timer.StatusPaused), "New"))
	assert.Equal(t, 0.0, getGaugeValue(t, TimersByStatus, string(timer.StatusPaused), "Old"))
}

func TestUpdateActiveDrivers(t *testing.T) {
	counts := []int{0, 1, 5, 10}

	for _, count := range counts {
		UpdateActiveDrivers(count)

		metric := &dto.Metric{}
		err := ActiveDrivers.Write(metric)
		require.NoError(t, err)

		assert.Equal(t, float64(count), metric.Gauge.GetValue())
	}
}

func TestUpdateHistoryEntries(t *testing.T) {
	UpdateHistoryEntries(42)

	metric := &dto.Metric{}
	require.NoError(t, HistoryEntries.Write(metric))
	assert.Equal(t, 42.0, metric.Gauge.GetValue())
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	tests := []struct {
		name     string
		method   string
		endpoint string
		status   string
		duration time.Duration
	}{
		{
			name:     "successful GET",
			method:   "GET",
			endpoint: "/api/timers",
			status:   "200",
			duration: 50 * time.Millisecond,
		},
		{
			name:     "bad POST",
			method:   "POST",
			endpoint: "/api/timers",
			status:   "400",
			duration: 10 * time.Millisecond,
		},
		{
			name:     "not found",
			method:   "GET",
			endpoint: "/api/timers/:id",
			status:   "404",
			duration: 5 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordHTTPRequest(tt.method, tt.endpoint, tt.status, tt.duration)

			count := getCounterValue(t, HTTPRequestsTotal, tt.method, tt.endpoint, tt.status)
			assert.Greater(t, count, 0.0, "request counter should be incremented")

			sum := getHistogramSum(t, HTTPRequestDuration, tt.method, tt.endpoint)
			assert.Greater(t, sum, 0.0, "duration should be recorded")
		})
	}
}

func readCounter(t *testing.T, counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.Counter.GetValue()
}

func getCounterValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	metric := &dto.Metric{}
	observer, err := counter.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	err = observer.Write(metric)
	require.NoError(t, err)
	return metric.Counter.GetValue()
}

func getGaugeValue(t *testing.T, gauge *prometheus.GaugeVec, labels ...string) float64 {
	metric := &dto.Metric{}
	observer, err := gauge.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	err = observer.Write(metric)
	require.NoError(t, err)
	return metric.Gauge.GetValue()
}

func getHistogramSum(t *testing.T, histogram *prometheus.HistogramVec, labels ...string) float64 {
	metric := getHistogramMetric(t, histogram, labels...)
	return metric.Histogram.GetSampleSum()
}

func getHistogramMetric(t *testing.T, histogram *prometheus.HistogramVec, labels ...string) *dto.Metric {
	metric := &dto.Metric{}
	observer, err := histogram.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	h := observer.(prometheus.Histogram)
	err = h.Write(metric)
	require.NoError(t, err)
	return metric
}
