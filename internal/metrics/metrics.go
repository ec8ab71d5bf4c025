// Package metrics exposes Prometheus collectors for the ingest pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsTotal                  *prometheus.CounterVec
	recordsSavedTotal           *prometheus.CounterVec
	runsTotal                   *prometheus.CounterVec
	upstreamRequestsTotal       *prometheus.CounterVec
	upstreamRequestDuration     *prometheus.HistogramVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	activeWorkers               prometheus.Gauge
	rateLimitDelaysSeconds      *prometheus.HistogramVec
	archiveWritesTotal          *prometheus.CounterVec
	notificationsPublishedTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podcast_items_total",
				Help: "Total number of pending items processed, labeled by variant and outcome.",
			},
			[]string{"variant", "outcome"},
		)

		recordsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podcast_records_saved_total",
				Help: "Total number of records inserted, labeled by variant.",
			},
			[]string{"variant"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podcast_runs_total",
				Help: "Total number of pipeline runs, labeled by variant and status.",
			},
			[]string{"variant", "status"},
		)

		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podcast_upstream_requests_total",
				Help: "Total number of pathfinder calls, labeled by operation, mode and outcome.",
			},
			[]string{"operation", "mode", "outcome"},
		)

		upstreamRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "podcast_upstream_request_duration_seconds",
				Help:    "Histogram of pathfinder call latencies, labeled by operation and mode.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation", "mode"},
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

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "podcast_active_workers",
				Help: "Number of workers currently processing an item.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "podcast_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		archiveWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podcast_archive_writes_total",
				Help: "Total number of raw response archive writes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		notificationsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podcast_notifications_published_total",
				Help: "Total number of save notifications published, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem counts one pending item with its outcome (saved, skipped, failed).
func ObserveItem(variant, outcome string) {
	Init()
	itemsTotal.WithLabelValues(variant, outcome).Inc()
}

// ObserveSaved adds n inserted records for the variant.
func ObserveSaved(variant string, n int) {
	Init()
	if n > 0 {
		recordsSavedTotal.WithLabelValues(variant).Add(float64(n))
	}
}

// ObserveRun counts a finished run.
func ObserveRun(variant, status string) {
	Init()
	runsTotal.WithLabelValues(variant, status).Inc()
}

// ObserveUpstream records one pathfinder call.
func ObserveUpstream(operation, mode, outcome string, duration time.Duration) {
	Init()
	upstreamRequestsTotal.WithLabelValues(operation, mode, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(operation, mode).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveArchiveWrite counts a raw response archive attempt.
func ObserveArchiveWrite(outcome string) {
	Init()
	archiveWritesTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a save notification attempt.
func ObserveNotification(outcome string) {
	Init()
	notificationsPublishedTotal.WithLabelValues(outcome).Inc()
}
