// Package metrics provides Prometheus metrics for the occupancy heatmap service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the occupancy service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Core Business Metrics
	heatmapsBuilt      prometheus.Counter
	heatmapRows        prometheus.Gauge
	aggregationLatency prometheus.Histogram
	overcommittedCells prometheus.Counter
	danglingReferences *prometheus.CounterVec
	rejectedRecords    *prometheus.CounterVec

	assignmentsCreated prometheus.Counter
	assignmentsDeleted prometheus.Counter
	validationErrors   *prometheus.CounterVec
	idempotentReplays  prometheus.Counter
	degradedResponses  prometheus.Counter

	// Collaborator Metrics - Stores and remote services
	collaboratorErrors     *prometheus.CounterVec
	collaboratorLatency    *prometheus.HistogramVec
	repositoryQueryLatency *prometheus.HistogramVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "occupancy",
		subsystem:        "heatmap",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.heatmapsBuilt = auto.NewCounter(m.counter("heatmaps_built_total", "Total number of heatmaps built"))
	m.heatmapRows = auto.NewGauge(m.gauge("heatmap_rows", "Number of employee rows in the last heatmap"))
	m.aggregationLatency = auto.NewHistogram(m.histogram(
		"aggregation_latency_milliseconds",
		"Time spent aggregating allocations into a heatmap in milliseconds",
		m.histogramBuckets,
	))
	m.overcommittedCells = auto.NewCounter(m.counter(
		"overcommitted_cells_total",
		"Heatmap cells whose utilization exceeded full capacity",
	))
	m.danglingReferences = auto.NewCounterVec(
		m.counter("dangling_references_total", "Records dropped because a referenced row was missing"),
		[]string{"kind"},
	)

	m.rejectedRecords = auto.NewCounterVec(
		m.counter("rejected_records_total", "Collaborator records dropped because they were duplicated or invalid"),
		[]string{"reason"},
	)

	m.assignmentsCreated = auto.NewCounter(m.counter("assignments_created_total", "Total number of assignments created"))
	m.assignmentsDeleted = auto.NewCounter(m.counter("assignments_deleted_total", "Total number of assignments deleted"))
	m.validationErrors = auto.NewCounterVec(
		m.counter("validation_errors_total", "Rejected requests by validation failure kind"),
		[]string{"kind"},
	)
	m.idempotentReplays = auto.NewCounter(m.counter(
		"idempotent_replays_total",
		"Assignment creations answered from the idempotency cache",
	))
	m.degradedResponses = auto.NewCounter(m.counter(
		"degraded_responses_total",
		"Heatmap responses served empty because a collaborator was unavailable",
	))

	m.collaboratorErrors = auto.NewCounterVec(
		m.counter("collaborator_errors_total", "Failed calls to stores and remote services"),
		[]string{"source"},
	)
	m.collaboratorLatency = auto.NewHistogramVec(
		m.histogram("collaborator_latency_milliseconds", "Remote collaborator call latency in milliseconds", m.histogramBuckets),
		[]string{"source"},
	)
	m.repositoryQueryLatency = auto.NewHistogramVec(
		m.histogram("repository_query_latency_milliseconds", "Repository query operation latency in milliseconds", m.histogramBuckets),
		[]string{"query"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByType = auto.NewCounterVec(
		m.counter("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counter("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram(
		"system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordHeatmapBuilt counts a built heatmap and sets the row gauge.
func RecordHeatmapBuilt(rows int) {
	globalManager.heatmapsBuilt.Inc()
	globalManager.heatmapRows.Set(float64(rows))
}

// RecordAggregationLatency records aggregation latency in milliseconds.
func RecordAggregationLatency(latencyMs float64) {
	globalManager.aggregationLatency.Observe(latencyMs)
}

// RecordOvercommittedCells adds n overcommitted cells.
func RecordOvercommittedCells(n int) {
	if n > 0 {
		globalManager.overcommittedCells.Add(float64(n))
	}
}

// RecordDanglingReference counts a record dropped during the join. kind
// names the missing side, e.g. "assignment" or "employee".
func RecordDanglingReference(kind string) {
	globalManager.danglingReferences.WithLabelValues(kind).Inc()
}

// RecordRejectedRecord counts a record dropped before aggregation for reason,
// e.g. "duplicate_employee" or "invalid_allocation".
func RecordRejectedRecord(reason string) {
	globalManager.rejectedRecords.WithLabelValues(reason).Inc()
}

// RecordAssignmentCreated increments the created assignments counter.
func RecordAssignmentCreated() {
	globalManager.assignmentsCreated.Inc()
}

// RecordAssignmentDeleted increments the deleted assignments counter.
func RecordAssignmentDeleted() {
	globalManager.assignmentsDeleted.Inc()
}

// RecordValidationError counts a rejected request.
func RecordValidationError(kind string) {
	globalManager.validationErrors.WithLabelValues(kind).Inc()
}

// RecordIdempotentReplay counts a creation answered from cache.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// RecordDegradedResponse counts a degraded heatmap response.
func RecordDegradedResponse() {
	globalManager.degradedResponses.Inc()
}

// RecordCollaboratorError counts a failed call to source.
func RecordCollaboratorError(source string) {
	globalManager.collaboratorErrors.WithLabelValues(source).Inc()
}

// RecordCollaboratorLatency records the latency of a call to source.
func RecordCollaboratorLatency(source string, latencyMs float64) {
	globalManager.collaboratorLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query latency.
func RecordRepositoryQueryLatency(query string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
