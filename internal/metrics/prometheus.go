package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCount counts HTTP requests
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	// CheckCount counts overlap checks by final status
	CheckCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlap_checks_total",
			Help: "Total number of local overlap checks",
		},
		[]string{"status"},
	)

	// ScoringDuration measures scoring of one submission against the corpus
	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlap_scoring_duration_seconds",
			Help:    "Local overlap scoring duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	// CorpusDocuments is the size of the most recently scored corpus
	CorpusDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlap_corpus_documents",
			Help: "Number of reference documents in the last loaded corpus",
		},
	)
)

var initOnce sync.Once

// InitPrometheus registers all collectors. Repeated calls are no-ops.
func InitPrometheus() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCount)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(CheckCount)
		prometheus.MustRegister(ScoringDuration)
		prometheus.MustRegister(CorpusDocuments)
	})
}

// MetricsHandler returns Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
