// Package metrics exposes Prometheus collectors for the news crawler.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes recorded by ObservePage.
const (
	OutcomeFetched   = "fetched"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
	OutcomeOffDomain = "off_domain"
)

var (
	crawlerPagesTotal           *prometheus.CounterVec
	crawlerCacheLookupsTotal    *prometheus.CounterVec
	crawlerCacheWriteFailures   prometheus.Counter
	crawlerFetchDurationSeconds *prometheus.HistogramVec
	crawlerLinksDiscoveredTotal prometheus.Counter
	crawlerLinksEnqueuedTotal   prometheus.Counter
	crawlerFrontierDepth        prometheus.Gauge
	crawlerVisited              prometheus.Gauge
	crawlerExtractionsTotal     *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaySeconds       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every observer calls it.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_pages_total",
				Help: "Pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_cache_lookups_total",
				Help: "Article cache lookups, labeled by result (hit, miss, error).",
			},
			[]string{"result"},
		)

		crawlerCacheWriteFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "newscrawler_cache_write_failures_total",
				Help: "Fetched pages whose content could not be persisted.",
			},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newscrawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch+render latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"headless"},
		)

		crawlerLinksDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "newscrawler_links_discovered_total",
				Help: "Article URLs that survived normalization.",
			},
		)

		crawlerLinksEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "newscrawler_links_enqueued_total",
				Help: "Article URLs appended to the frontier.",
			},
		)

		crawlerFrontierDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newscrawler_frontier_depth",
				Help: "URLs waiting in the frontier.",
			},
		)

		crawlerVisited = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newscrawler_visited",
				Help: "URLs visited in the current run.",
			},
		)

		crawlerExtractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_extractions_total",
				Help: "Structured extraction calls, labeled by status.",
			},
			[]string{"status"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newscrawler_rate_limit_delay_seconds",
				Help:    "Time spent waiting on a rate limiter, labeled by limiter key.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"key"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
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
	Init()
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObservePage increments the page counter for outcome.
func ObservePage(outcome string) {
	Init()
	crawlerPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup records a cache hit, miss or error.
func ObserveCacheLookup(result string) {
	Init()
	crawlerCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCacheWriteFailure counts content that could not be persisted.
func ObserveCacheWriteFailure() {
	Init()
	crawlerCacheWriteFailures.Inc()
}

// ObserveFetch records how long a page fetch took.
func ObserveFetch(headless bool, duration time.Duration) {
	Init()
	crawlerFetchDurationSeconds.WithLabelValues(strconv.FormatBool(headless)).Observe(duration.Seconds())
}

// ObserveLinks records discovered and enqueued article URLs for one page.
func ObserveLinks(discovered, enqueued int) {
	Init()
	crawlerLinksDiscoveredTotal.Add(float64(discovered))
	crawlerLinksEnqueuedTotal.Add(float64(enqueued))
}

// SetFrontier publishes the frontier depth and visited count.
func SetFrontier(pending, visited int) {
	Init()
	crawlerFrontierDepth.Set(float64(pending))
	crawlerVisited.Set(float64(visited))
}

// ObserveExtraction counts a structured extraction call by status.
func ObserveExtraction(status string) {
	Init()
	crawlerExtractionsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the limiter for key.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(key).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
