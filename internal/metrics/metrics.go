// Package metrics exposes Prometheus collectors for the extraction service.
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
	extractionResultsTotal         *prometheus.CounterVec
	extractionStageDurationSeconds *prometheus.HistogramVec
	fetchBytesTotal                *prometheus.CounterVec
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec
	robotsTLSHandshakeTimeoutTotal prometheus.Counter
	rateLimitWaitSeconds           *prometheus.HistogramVec
	rateLimitTimeoutsTotal         *prometheus.CounterVec
	rateLimitTrackedKeys           prometheus.Gauge
	headlessActiveTabs             prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		extractionResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_results_total",
				Help: "Total pipeline results, labeled by producing tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)

		extractionStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_stage_duration_seconds",
				Help:    "Histogram of pipeline stage latencies, labeled by stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_fetch_bytes_total",
				Help: "Total number of bytes retrieved, labeled by tier.",
			},
			[]string{"tier"},
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

		robotsTLSHandshakeTimeoutTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "extraction_robots_tls_handshake_timeout_total",
				Help: "Total TLS handshake timeouts encountered while fetching robots.txt.",
			},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratelimit_wait_seconds",
				Help:    "Histogram of time spent waiting for admission, labeled by domain.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"domain"},
		)

		rateLimitTimeoutsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_timeouts_total",
				Help: "Total admissions that gave up before a token was available, labeled by domain.",
			},
			[]string{"domain"},
		)

		rateLimitTrackedKeys = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratelimit_tracked_keys",
				Help: "Number of domains currently holding bucket state.",
			},
		)

		headlessActiveTabs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "headless_active_tabs",
				Help: "Number of browser tabs currently rendering a page.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResult increments the pipeline result counter.
func ObserveResult(tier, outcome string) {
	Init()
	extractionResultsTotal.WithLabelValues(tier, outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	extractionStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveFetchBytes adds to the retrieved byte counter.
func ObserveFetchBytes(tier string, n int) {
	if n <= 0 {
		return
	}
	Init()
	fetchBytesTotal.WithLabelValues(tier).Add(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRobotsTLSHandshakeTimeout increments the robots.txt handshake timeout counter.
func ObserveRobotsTLSHandshakeTimeout() {
	Init()
	robotsTLSHandshakeTimeoutTotal.Inc()
}

// ObserveRateLimitWait records the time a caller spent queued for admission.
func ObserveRateLimitWait(domain string, duration time.Duration) {
	Init()
	rateLimitWaitSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRateLimitTimeout increments the admission timeout counter.
func ObserveRateLimitTimeout(domain string) {
	Init()
	rateLimitTimeoutsTotal.WithLabelValues(domain).Inc()
}

// SetRateLimitTrackedKeys reports how many domains the limiter retains.
func SetRateLimitTrackedKeys(n int) {
	Init()
	rateLimitTrackedKeys.Set(float64(n))
}

// IncHeadlessTabs increments the active tab gauge.
func IncHeadlessTabs() {
	Init()
	headlessActiveTabs.Inc()
}

// DecHeadlessTabs decrements the active tab gauge.
func DecHeadlessTabs() {
	Init()
	headlessActiveTabs.Dec()
}
