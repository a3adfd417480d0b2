// Package metrics exposes Prometheus collectors for the policy scan service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeRequestsTotal        *prometheus.CounterVec
	scrapeDocumentsTotal       *prometheus.CounterVec
	scrapeRetriesTotal         *prometheus.CounterVec
	scrapeBotBlocksTotal       prometheus.Counter
	scrapeRateLimitDelays      prometheus.Histogram
	indexDocumentsTotal        *prometheus.CounterVec
	indexBatchesTotal          *prometheus.CounterVec
	indexBatchDurationSeconds  prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyscan_scrape_requests_total",
				Help: "Total number of fetches issued by scraper plugins, labeled by plugin and outcome.",
			},
			[]string{"plugin", "outcome"},
		)

		scrapeDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyscan_scrape_documents_total",
				Help: "Total number of documents discovered, labeled by plugin.",
			},
			[]string{"plugin"},
		)

		scrapeRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyscan_scrape_retries_total",
				Help: "Total number of retried requests, labeled by status code.",
			},
			[]string{"code"},
		)

		scrapeBotBlocksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "policyscan_scrape_bot_blocks_total",
				Help: "Total number of bot-detection responses encountered.",
			},
		)

		scrapeRateLimitDelays = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "policyscan_scrape_rate_limit_delay_seconds",
				Help:    "Histogram of rate limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		indexDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyscan_index_documents_total",
				Help: "Total number of documents handled by the indexer, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		indexBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyscan_index_batches_total",
				Help: "Total number of index batches submitted, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		indexBatchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "policyscan_index_batch_duration_seconds",
				Help:    "Histogram of index batch processing durations.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 15, 60},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrapeRequest increments the fetch counter for a plugin.
func ObserveScrapeRequest(plugin, outcome string) {
	if scrapeRequestsTotal == nil {
		return
	}
	scrapeRequestsTotal.WithLabelValues(plugin, outcome).Inc()
}

// AddDocumentsDiscovered adds to the discovered document counter for a plugin.
func AddDocumentsDiscovered(plugin string, n int) {
	if scrapeDocumentsTotal == nil || n <= 0 {
		return
	}
	scrapeDocumentsTotal.WithLabelValues(plugin).Add(float64(n))
}

// IncRetry increments the retry counter for the given status code.
func IncRetry(code int) {
	if scrapeRetriesTotal == nil {
		return
	}
	scrapeRetriesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// IncBotBlocks increments the bot-detection counter.
func IncBotBlocks() {
	if scrapeBotBlocksTotal == nil {
		return
	}
	scrapeBotBlocksTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a rate limiter wait.
func ObserveRateLimitDelay(duration time.Duration) {
	if scrapeRateLimitDelays == nil {
		return
	}
	scrapeRateLimitDelays.Observe(duration.Seconds())
}

// ObserveIndexedDocument increments the indexer document counter for the
// given outcome (indexed, failed or skipped).
func ObserveIndexedDocument(outcome string) {
	if indexDocumentsTotal == nil {
		return
	}
	indexDocumentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveIndexBatch records one submitted batch and its duration.
func ObserveIndexBatch(outcome string, duration time.Duration) {
	if indexBatchesTotal == nil {
		return
	}
	indexBatchesTotal.WithLabelValues(outcome).Inc()
	indexBatchDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
