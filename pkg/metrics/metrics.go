// Package metrics defines the Prometheus metric collectors used by the index
// builder, the classifier and the classify service, and exposes an HTTP
// handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         prometheus.Histogram
	QueryTermsSkipped    prometheus.Counter
	MissingDocLengths    prometheus.Counter
	PostingsRead         prometheus.Counter
	NeighborsFound       prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	BuildTermsTotal      prometheus.Counter
	BuildDroppedRecords  prometheus.Counter
}

// New creates all collectors and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knn_queries_total",
				Help: "Total classified queries by outcome (classified, no_class, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "knn_query_latency_seconds",
				Help:    "Score, rank and vote latency per query in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		QueryTermsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "knn_query_terms_skipped_total",
				Help: "Query terms skipped because they are not in the lexicon.",
			},
		),
		MissingDocLengths: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "knn_missing_doc_lengths_total",
				Help: "Posting contributions dropped because the document has no length entry.",
			},
		),
		PostingsRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "knn_postings_read_total",
				Help: "Posting records read from the postings file.",
			},
		),
		NeighborsFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "knn_labeled_neighbors",
				Help:    "Labeled neighbors that voted per query.",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of classification cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of classification cache misses.",
			},
		),
		BuildTermsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_build_terms_total",
				Help: "Lexicon entries written by the index builder.",
			},
		),
		BuildDroppedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_build_dropped_records_total",
				Help: "Raw posting pairs dropped because they were malformed.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryTermsSkipped,
		m.MissingDocLengths,
		m.PostingsRead,
		m.NeighborsFound,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.BuildTermsTotal,
		m.BuildDroppedRecords,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
