package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the disambiguation service,
// organized by subsystem: name comparison, cluster assignment, the candidate
// compatibility cache, batch loops, harvester modules and the HTTP API. All
// metrics are registered via promauto with the default registry.
type Metrics struct {
	// ComparisonsTotal counts name comparisons, labeled by kind
	// ("full" or "soft").
	ComparisonsTotal *prometheus.CounterVec

	// AssignmentsTotal counts assignment outcomes, labeled by outcome
	// (created, attached, attached_multiple, deferred, already_assigned).
	AssignmentsTotal *prometheus.CounterVec

	// AssignmentDuration observes the duration of a single assignment in
	// seconds.
	AssignmentDuration prometheus.Histogram

	// AssignmentScore observes the winning compatibility score of
	// non-created assignments.
	AssignmentScore prometheus.Histogram

	// CacheHits counts compatibility cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts compatibility cache misses.
	CacheMisses prometheus.Counter

	// BatchesTotal counts batch loop runs, labeled by loop
	// ("orphans" or "updates").
	BatchesTotal *prometheus.CounterVec

	// BatchDuration observes batch loop duration in seconds, labeled by loop.
	BatchDuration *prometheus.HistogramVec

	// SignatureErrors counts per-signature processing errors skipped by the
	// batch loops.
	SignatureErrors prometheus.Counter

	// HarvesterFailures counts comparison module failures, labeled by module.
	HarvesterFailures *prometheus.CounterVec

	// EventsPublished counts published assignment events, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts event publish failures, labeled by event type.
	EventsFailed *prometheus.CounterVec

	// HTTPRequestsTotal counts API requests, labeled by method, route and
	// status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes API request duration in seconds, labeled
	// by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ComparisonsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_comparisons_total",
			Help:      "Total number of name comparisons performed",
		}, []string{"kind"}),
		AssignmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Total number of signature assignment outcomes",
		}, []string{"outcome"}),
		AssignmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_duration_seconds",
			Help:      "Duration of a single signature assignment",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		AssignmentScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_score",
			Help:      "Winning compatibility score of attach decisions",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compat_cache_hits_total",
			Help:      "Total number of compatibility cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compat_cache_misses_total",
			Help:      "Total number of compatibility cache misses",
		}),
		BatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batch loop runs",
		}, []string{"loop"}),
		BatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a batch loop run",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}, []string{"loop"}),
		SignatureErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_errors_total",
			Help:      "Total number of per-signature errors skipped by batch loops",
		}),
		HarvesterFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvester_failures_total",
			Help:      "Total number of comparison module failures",
		}, []string{"module"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of assignment events published",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of assignment event publish failures",
		}, []string{"event_type"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),
	}
}

// RecordComparison records one name comparison of the given kind.
func (m *Metrics) RecordComparison(kind string) {
	m.ComparisonsTotal.WithLabelValues(kind).Inc()
}

// RecordAssignment records an assignment outcome with its duration.
func (m *Metrics) RecordAssignment(outcome string, durationSeconds float64) {
	m.AssignmentsTotal.WithLabelValues(outcome).Inc()
	m.AssignmentDuration.Observe(durationSeconds)
}

// RecordAssignmentScore records the winning score of an attach decision.
func (m *Metrics) RecordAssignmentScore(score float64) {
	m.AssignmentScore.Observe(score)
}

// RecordCacheHit records a compatibility cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a compatibility cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordBatch records a batch loop run with its duration.
func (m *Metrics) RecordBatch(loop string, durationSeconds float64) {
	m.BatchesTotal.WithLabelValues(loop).Inc()
	m.BatchDuration.WithLabelValues(loop).Observe(durationSeconds)
}

// RecordSignatureError records a skipped per-signature error.
func (m *Metrics) RecordSignatureError() {
	m.SignatureErrors.Inc()
}

// RecordHarvesterFailure records a comparison module failure.
func (m *Metrics) RecordHarvesterFailure(module string) {
	m.HarvesterFailures.WithLabelValues(module).Inc()
}

// RecordEventPublished records a published assignment event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records an assignment event publish failure.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records one API request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
