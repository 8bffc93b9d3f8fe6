// Package metrics provides Prometheus metrics for the OctoFit tracker service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are in milliseconds.
var latencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Leaderboard recompute
	recomputeRuns      *prometheus.CounterVec
	recomputeDuration  prometheus.Histogram
	leaderboardEntries prometheus.Gauge
	skippedRecords     *prometheus.CounterVec
	lastRecomputeUnix  prometheus.Gauge

	// Store
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	// Recompute queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDropped  *prometheus.CounterVec
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// Event publishing
	eventsPublished *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals

func init() { //nolint:gochecknoinits
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "octofit",
		subsystem:        "tracker",
		histogramBuckets: latencyBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen
	auto := promauto.With(m.registry)

	m.recomputeRuns = auto.NewCounterVec(m.counterOpts("leaderboard_recompute_total", "Leaderboard recompute runs by outcome"), []string{"outcome"})
	m.recomputeDuration = auto.NewHistogram(m.histogramOpts("leaderboard_recompute_duration_milliseconds", "Wall time of a full snapshot-aggregate-persist run"))
	m.leaderboardEntries = auto.NewGauge(m.gaugeOpts("leaderboard_entries", "Entries written by the last successful recompute"))
	m.skippedRecords = auto.NewCounterVec(m.counterOpts("leaderboard_skipped_records_total", "Activity records excluded from aggregation by reason"), []string{"reason"})
	m.lastRecomputeUnix = auto.NewGauge(m.gaugeOpts("leaderboard_last_recompute_timestamp_seconds", "Unix time of the last successful recompute"))

	m.storeOperations = auto.NewCounterVec(m.counterOpts("store_operations_total", "Store operations by collection, operation and outcome"), []string{"collection", "operation", "outcome"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_operation_duration_milliseconds", "Store operation latency"), []string{"collection", "operation"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("recompute_queue_size", "Pending recompute requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("recompute_queue_capacity", "Capacity of the recompute queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("recompute_queue_enqueued_total", "Recompute requests accepted by the queue"))
	m.queueDropped = auto.NewCounterVec(m.counterOpts("recompute_queue_dropped_total", "Recompute requests not enqueued by reason"), []string{"reason"})
	m.workerCount = auto.NewGauge(m.gaugeOpts("recompute_workers", "Running recompute workers"))
	m.workerLatency = auto.NewHistogram(m.histogramOpts("recompute_worker_latency_milliseconds", "Time a worker spent on one request"))
	m.workerErrors = auto.NewCounter(m.counterOpts("recompute_worker_errors_total", "Requests whose recompute failed inside a worker"))

	m.eventsPublished = auto.NewCounterVec(m.counterOpts("events_published_total", "Leaderboard events published by outcome"), []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause"))
}

// Leaderboard.

// RecordRecompute records the outcome ("success", "store_error", ...) and duration of a run.
func RecordRecompute(outcome string, durationMs float64) {
	globalManager.recomputeRuns.WithLabelValues(outcome).Inc()
	globalManager.recomputeDuration.Observe(durationMs)
}

// UpdateLeaderboardEntries sets the entry count of the current leaderboard.
func UpdateLeaderboardEntries(count int) {
	globalManager.leaderboardEntries.Set(float64(count))
}

// RecordSkippedRecord counts an activity excluded from aggregation.
func RecordSkippedRecord(reason string) {
	globalManager.skippedRecords.WithLabelValues(reason).Inc()
}

// UpdateLastRecompute stores the unix time of the last successful run.
func UpdateLastRecompute(unix float64) {
	globalManager.lastRecomputeUnix.Set(unix)
}

// Store.

// RecordStoreOperation records a store call and its latency.
func RecordStoreOperation(collection, operation string, err error, latencyMs float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	globalManager.storeOperations.WithLabelValues(collection, operation, outcome).Inc()
	globalManager.storeLatency.WithLabelValues(collection, operation).Observe(latencyMs)
}

// Queue and workers.

// UpdateQueueSize sets the number of pending recompute requests.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted request.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDropped counts a request that was not enqueued.
func RecordQueueDropped(reason string) {
	globalManager.queueDropped.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerLatency observes how long a worker spent on a request.
func RecordWorkerLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed recompute inside a worker.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Events.

// RecordEventPublished counts a publish attempt by outcome.
func RecordEventPublished(outcome string) {
	globalManager.eventsPublished.WithLabelValues(outcome).Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request latency.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
