// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Sync metrics
	SyncsTotal     *prometheus.CounterVec
	SyncDuration   prometheus.Histogram
	TradesFetched  prometheus.Counter
	TradesUpserted prometheus.Counter

	// Enrichment metrics
	EnrichmentsTotal   *prometheus.CounterVec
	EnrichmentDuration prometheus.Histogram

	// Upstream metrics
	UpstreamErrors *prometheus.CounterVec

	// Ingest worker metrics
	IngestCyclesTotal *prometheus.CounterVec

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "options_flow_lab"
	}

	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total historical queries by outcome code",
		}, []string{"code"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Historical query latency by outcome code",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code"}),

		SyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total upstream day syncs by outcome",
		}, []string{"status"}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Upstream day sync latency",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "trades_fetched_total",
			Help:      "Total raw trades fetched from the upstream feed",
		}),
		TradesUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "trades_upserted_total",
			Help:      "Total raw trades newly inserted",
		}),

		EnrichmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "runs_total",
			Help:      "Total day enrichment runs by outcome",
		}, []string{"status"}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Day enrichment latency",
			Buckets:   prometheus.DefBuckets,
		}),

		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Total swallowed upstream call failures by endpoint",
		}, []string{"endpoint"}),

		IngestCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "cycles_total",
			Help:      "Total ingest worker cycles by outcome",
		}, []string{"status"}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total database errors by store",
		}, []string{"store"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuery records a historical query outcome. code is "ok" or the
// structured error code.
func RecordQuery(code string, d time.Duration) {
	DefaultMetrics.QueriesTotal.WithLabelValues(code).Inc()
	DefaultMetrics.QueryDuration.WithLabelValues(code).Observe(d.Seconds())
}

// RecordSync records an upstream day sync.
func RecordSync(status string, d time.Duration, fetched, upserted int64) {
	DefaultMetrics.SyncsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SyncDuration.Observe(d.Seconds())
	DefaultMetrics.TradesFetched.Add(float64(fetched))
	DefaultMetrics.TradesUpserted.Add(float64(upserted))
}

// RecordEnrichment records a day enrichment run.
func RecordEnrichment(status string, d time.Duration) {
	DefaultMetrics.EnrichmentsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.EnrichmentDuration.Observe(d.Seconds())
}

// RecordUpstreamError records a swallowed upstream call failure.
func RecordUpstreamError(endpoint string) {
	DefaultMetrics.UpstreamErrors.WithLabelValues(endpoint).Inc()
}

// RecordIngestCycle records one ingest worker cycle.
func RecordIngestCycle(status string) {
	DefaultMetrics.IngestCyclesTotal.WithLabelValues(status).Inc()
}

// RecordDBError records a database error for a store.
func RecordDBError(store string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(store).Inc()
}
