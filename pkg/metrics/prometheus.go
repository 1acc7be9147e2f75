// Package metrics provides Prometheus metrics for the EQUILIBRATE trust engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the trust engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Core business metrics - event pipeline outcomes
	ratingsSubmitted   prometheus.Counter
	ratingsApplied     prometheus.Counter
	ratingsRejected    *prometheus.CounterVec
	ratingsQuarantined prometheus.Counter
	ratingsSuspicious  prometheus.Counter
	ratingsDuplicate   prometheus.Counter
	appliedDelta       prometheus.Histogram

	// Sentiment adapter metrics
	sentimentCalls        *prometheus.CounterVec
	sentimentLatency      prometheus.Histogram
	sentimentCacheHits    prometheus.Counter
	sentimentUnavailable  prometheus.Counter
	correlationLookups    *prometheus.CounterVec
	correlationFeedErrors prometheus.Counter

	// Decay engine metrics
	decaySettleOps   prometheus.Counter
	decaySweepRuns   prometheus.Counter
	decaySweepSize   prometheus.Histogram
	decaySettleDrift prometheus.Histogram

	// Store metrics
	storeCommitLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	storeErrors        prometheus.Counter
	trackedEntities    prometheus.Gauge

	// Queue metrics - bulk ingestion path
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueLatency       prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "equilibrate",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.ratingsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_submitted_total",
		Help:      "Total number of rating events submitted",
	})

	m.ratingsApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_applied_total",
		Help:      "Total number of rating events applied to a trust score",
	})

	m.ratingsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_rejected_total",
		Help:      "Total number of rejected rating events by reason",
	}, []string{"reason"})

	m.ratingsQuarantined = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_quarantined_total",
		Help:      "Total number of rating events held for review",
	})

	m.ratingsSuspicious = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_suspicious_total",
		Help:      "Total number of rating events applied at reduced weight",
	})

	m.ratingsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_duplicate_total",
		Help:      "Total number of duplicate event ids detected",
	})

	m.appliedDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "applied_delta",
		Help:      "Distribution of applied score deltas",
		Buckets:   []float64{-0.5, -0.1, -0.05, -0.01, 0, 0.01, 0.05, 0.1, 0.5},
	})

	m.sentimentCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sentiment_classifications_total",
		Help:      "Total sentiment classifications by polarity outcome",
	}, []string{"polarity"})

	m.sentimentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sentiment_latency_ms",
		Help:      "External sentiment classification latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.sentimentCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sentiment_cache_hits_total",
		Help:      "Total sentiment classifications served from the TTL cache",
	})

	m.sentimentUnavailable = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sentiment_unavailable_total",
		Help:      "Total classifier failures degraded to Unknown polarity",
	})

	m.correlationLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "correlation_lookups_total",
		Help:      "Total correlation feed lookups by outcome",
	}, []string{"outcome"})

	m.correlationFeedErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "correlation_feed_errors_total",
		Help:      "Total correlation feed failures degraded to no-cluster",
	})

	m.decaySettleOps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "decay_settle_total",
		Help:      "Total decay settlements applied before score updates",
	})

	m.decaySweepRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "decay_sweep_runs_total",
		Help:      "Total scheduled decay sweep executions",
	})

	m.decaySweepSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "decay_sweep_entities",
		Help:      "Number of entities settled per decay sweep",
		Buckets:   []float64{0, 1, 10, 100, 1000, 10000},
	})

	m.decaySettleDrift = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "decay_settle_drift",
		Help:      "Absolute score movement caused by decay settlement",
		Buckets:   []float64{0, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	})

	m.storeCommitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_commit_latency_ms",
		Help:      "Trust store commit latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_ms",
		Help:      "Trust store query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total trust store failures surfaced as retryable errors",
	})

	m.trackedEntities = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_entities",
		Help:      "Current number of entities with a trust record",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of events in the bulk ingestion queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum capacity of the bulk ingestion queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Queue utilization as a fraction of capacity",
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total events enqueued to the bulk ingestion queue",
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total events dequeued from the bulk ingestion queue",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total enqueue failures (backpressure, closed queue)",
	})

	m.queueLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_processing_latency_ms",
		Help:      "Enqueue operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of ingestion workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_ms",
		Help:      "End-to-end event processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total worker processing errors",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Total errors by component and error type",
	}, []string{"component", "error_type"})
}

// Package-level helpers operating on the global manager.

// RecordRatingSubmitted increments the submitted ratings counter.
func RecordRatingSubmitted() {
	globalManager.ratingsSubmitted.Inc()
}

// RecordRatingApplied increments the applied ratings counter.
func RecordRatingApplied() {
	globalManager.ratingsApplied.Inc()
}

// RecordRatingRejected increments the rejected ratings counter for a reason.
func RecordRatingRejected(reason string) {
	globalManager.ratingsRejected.WithLabelValues(reason).Inc()
}

// RecordRatingQuarantined increments the quarantined ratings counter.
func RecordRatingQuarantined() {
	globalManager.ratingsQuarantined.Inc()
}

// RecordRatingSuspicious increments the suspicious ratings counter.
func RecordRatingSuspicious() {
	globalManager.ratingsSuspicious.Inc()
}

// RecordRatingDuplicate increments the duplicate event counter.
func RecordRatingDuplicate() {
	globalManager.ratingsDuplicate.Inc()
}

// RecordAppliedDelta observes an applied score delta.
func RecordAppliedDelta(delta float64) {
	globalManager.appliedDelta.Observe(delta)
}

// RecordSentimentClassification increments the classification counter for a polarity.
func RecordSentimentClassification(polarity string) {
	globalManager.sentimentCalls.WithLabelValues(polarity).Inc()
}

// RecordSentimentLatency observes classifier latency.
func RecordSentimentLatency(latencyMs float64) {
	globalManager.sentimentLatency.Observe(latencyMs)
}

// RecordSentimentCacheHit increments the cache hit counter.
func RecordSentimentCacheHit() {
	globalManager.sentimentCacheHits.Inc()
}

// RecordSentimentUnavailable increments the degraded classifier counter.
func RecordSentimentUnavailable() {
	globalManager.sentimentUnavailable.Inc()
}

// RecordCorrelationLookup increments the correlation lookup counter for an outcome.
func RecordCorrelationLookup(outcome string) {
	globalManager.correlationLookups.WithLabelValues(outcome).Inc()
}

// RecordCorrelationFeedError increments the correlation feed error counter.
func RecordCorrelationFeedError() {
	globalManager.correlationFeedErrors.Inc()
}

// RecordDecaySettle increments the settle counter and observes the drift.
func RecordDecaySettle(drift float64) {
	globalManager.decaySettleOps.Inc()
	if drift < 0 {
		drift = -drift
	}
	globalManager.decaySettleDrift.Observe(drift)
}

// RecordDecaySweep records one sweep run over n entities.
func RecordDecaySweep(entities int) {
	globalManager.decaySweepRuns.Inc()
	globalManager.decaySweepSize.Observe(float64(entities))
}

// RecordStoreCommitLatency observes a commit latency.
func RecordStoreCommitLatency(latencyMs float64) {
	globalManager.storeCommitLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency observes a query latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreError increments the store error counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// UpdateTrackedEntities sets the tracked entities gauge.
func UpdateTrackedEntities(count int) {
	globalManager.trackedEntities.Set(float64(count))
}

// UpdateQueueSize sets the queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization gauge.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency observes enqueue operation latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the worker count gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes end-to-end processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent increments the per-component error counter.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry for serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
