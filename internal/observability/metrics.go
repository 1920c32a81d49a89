// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	StreamEvents     *prometheus.CounterVec
	MalformedEvents  *prometheus.CounterVec
	HandlerPanics    *prometheus.CounterVec
	StreamStatus     *prometheus.GaugeVec
	StreamReconnects prometheus.Counter

	// REST metrics
	RESTCallLatency *prometheus.HistogramVec
	RESTFallbacks   *prometheus.CounterVec
	OrdersSubmitted *prometheus.CounterVec

	// Store metrics
	SpotlightSize      prometheus.Gauge
	PlaceholdersPruned prometheus.Counter
	TokensEvicted      prometheus.Counter
	SnapshotsApplied   prometheus.Counter

	// Archive metrics
	ArchiveWrites  *prometheus.CounterVec
	ArchiveErrors  *prometheus.CounterVec
	ArchiveDropped prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchmeme_terminal"
	}

	return &Metrics{
		// Stream metrics
		StreamEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of realtime events dispatched by type",
		}, []string{"event_type"}),
		MalformedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "malformed_events_total",
			Help:      "Total number of realtime payloads dropped by the mapper",
		}, []string{"event_type"}),
		HandlerPanics: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "handler_panics_total",
			Help:      "Total number of recovered handler panics by event type",
		}, []string{"event_type"}),
		StreamStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "status",
			Help:      "Current stream status (1 for the active state)",
		}, []string{"status"}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connects_total",
			Help:      "Total number of successful realtime connects",
		}),

		// REST metrics
		RESTCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "call_latency_seconds",
			Help:      "launch.meme REST call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
		RESTFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "fallbacks_total",
			Help:      "Total number of synthetic fallback payloads served by endpoint",
		}, []string{"endpoint"}),
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "orders_total",
			Help:      "Total number of order submissions by result",
		}, []string{"result"}),

		// Store metrics
		SpotlightSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "spotlight_size",
			Help:      "Current number of tokens in the spotlight collection",
		}),
		PlaceholdersPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "placeholders_pruned_total",
			Help:      "Total number of placeholder tokens removed by pruning",
		}),
		TokensEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tokens_evicted_total",
			Help:      "Total number of tokens evicted by the collection cap",
		}),
		SnapshotsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "snapshots_applied_total",
			Help:      "Total number of spotlight snapshots applied",
		}),

		// Archive metrics
		ArchiveWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Total number of market tape rows written by kind",
		}, []string{"kind"}),
		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of market tape write errors by kind",
		}, []string{"kind"}),
		ArchiveDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "dropped_total",
			Help:      "Total number of tape records dropped because the queue was full",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// streamStates lists every label value of the status gauge.
var streamStates = []string{"idle", "connecting", "connected", "disconnected", "error"}

// RecordStreamEvent increments the dispatched events counter.
func RecordStreamEvent(eventType string) {
	DefaultMetrics.StreamEvents.WithLabelValues(eventType).Inc()
}

// RecordMalformed records a payload the mapper rejected.
func RecordMalformed(eventType string) {
	DefaultMetrics.MalformedEvents.WithLabelValues(eventType).Inc()
}

// RecordHandlerPanic records a recovered handler panic.
func RecordHandlerPanic(eventType string) {
	DefaultMetrics.HandlerPanics.WithLabelValues(eventType).Inc()
}

// SetStreamStatus marks status as the active state of the status gauge.
func SetStreamStatus(status string) {
	for _, s := range streamStates {
		v := 0.0
		if s == status {
			v = 1
		}
		DefaultMetrics.StreamStatus.WithLabelValues(s).Set(v)
	}
	if status == "connected" {
		DefaultMetrics.StreamReconnects.Inc()
	}
}

// RecordRESTCall records REST call latency.
func RecordRESTCall(endpoint string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.RESTCallLatency.WithLabelValues(endpoint, outcome).Observe(seconds)
}

// RecordFallback records a synthetic payload served instead of a REST response.
func RecordFallback(endpoint string) {
	DefaultMetrics.RESTFallbacks.WithLabelValues(endpoint).Inc()
}

// RecordOrder records an order submission result.
func RecordOrder(success bool) {
	result := "failed"
	if success {
		result = "accepted"
	}
	DefaultMetrics.OrdersSubmitted.WithLabelValues(result).Inc()
}

// UpdateSpotlightSize updates the spotlight size gauge.
func UpdateSpotlightSize(n int) {
	DefaultMetrics.SpotlightSize.Set(float64(n))
}

// RecordPruned records placeholder tokens removed by pruning.
func RecordPruned(n int) {
	DefaultMetrics.PlaceholdersPruned.Add(float64(n))
}

// RecordEvicted records tokens evicted by the collection cap.
func RecordEvicted(n int) {
	DefaultMetrics.TokensEvicted.Add(float64(n))
}

// RecordSnapshotApplied increments the applied snapshots counter.
func RecordSnapshotApplied() {
	DefaultMetrics.SnapshotsApplied.Inc()
}

// RecordArchiveWrite records market tape rows written.
func RecordArchiveWrite(kind string, rows int, err error) {
	if err != nil {
		DefaultMetrics.ArchiveErrors.WithLabelValues(kind).Inc()
		return
	}
	DefaultMetrics.ArchiveWrites.WithLabelValues(kind).Add(float64(rows))
}

// RecordArchiveDropped increments the dropped tape records counter.
func RecordArchiveDropped() {
	DefaultMetrics.ArchiveDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
