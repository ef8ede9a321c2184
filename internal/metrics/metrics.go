// Package metrics exposes Prometheus collectors for the watcher service.
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
	cyclesTotal                *prometheus.CounterVec
	cycleDurationSeconds       prometheus.Histogram
	topicRunsTotal             *prometheus.CounterVec
	productsAddedTotal         prometheus.Counter
	webhookBatchesTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_cycles_total",
				Help: "Total number of watch cycles, labeled by status.",
			},
			[]string{"status"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "watcher_cycle_duration_seconds",
				Help:    "Histogram of watch cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		topicRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_topic_runs_total",
				Help: "Total number of per-topic runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		productsAddedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "watcher_products_added_total",
				Help: "Total number of newly listed products detected.",
			},
		)

		webhookBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_webhook_batches_total",
				Help: "Total number of webhook batches posted, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_http_requests_total",
				Help: "Total number of ops API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watcher_http_request_duration_seconds",
				Help:    "Histogram of ops API latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records a finished cycle.
func ObserveCycle(status string, duration time.Duration) {
	if cyclesTotal == nil {
		return
	}
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveTopicRun records the outcome of one topic within a cycle.
func ObserveTopicRun(outcome string, added int) {
	if topicRunsTotal == nil {
		return
	}
	topicRunsTotal.WithLabelValues(outcome).Inc()
	if added > 0 {
		productsAddedTotal.Add(float64(added))
	}
}

// ObserveWebhookBatch records one webhook POST.
func ObserveWebhookBatch(status string) {
	if webhookBatchesTotal == nil {
		return
	}
	webhookBatchesTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
