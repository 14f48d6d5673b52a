// Package metrics exposes Prometheus collectors for the harpoon service.
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
	cycleIterations            prometheus.Histogram
	cycleDurationSeconds       prometheus.Histogram
	fragmentsTotal             *prometheus.CounterVec
	anchorsTotal               prometheus.Counter
	engineThreads              prometheus.Gauge
	collaboratorErrorsTotal    *prometheus.CounterVec
	rateLimitedTotal           prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harpoon_cycles_total",
				Help: "Cycles run, labeled by how they ended (drained or capped).",
			},
			[]string{"outcome"},
		)

		cycleIterations = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harpoon_cycle_iterations",
				Help:    "Evaluations performed per cycle.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harpoon_cycle_duration_seconds",
				Help:    "Wall time per cycle including state construction.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		fragmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harpoon_fragments_total",
				Help: "Fragments leaving a cycle, labeled by language and final status.",
			},
			[]string{"language", "status"},
		)

		anchorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harpoon_anchors_total",
				Help: "Anchors appended across all cycles.",
			},
		)

		engineThreads = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harpoon_engine_threads",
				Help: "Worker goroutines backing the engine.",
			},
		)

		collaboratorErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harpoon_collaborator_errors_total",
				Help: "Failures feeding cycle results to stores, archives and publishers.",
			},
			[]string{"collaborator"},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harpoon_rate_limited_total",
				Help: "API requests refused by the per-client rate limiter.",
			},
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
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

var knownLanguages = map[string]struct{}{
	"python":     {},
	"rust":       {},
	"typescript": {},
	"config":     {},
	"text":       {},
}

// LanguageLabel bounds label cardinality to the detector's closed set.
func LanguageLabel(lang string) string {
	if _, ok := knownLanguages[lang]; ok {
		return lang
	}
	return "other"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one finished cycle. capped reports whether the
// iteration cap stopped it with fragments still queued.
func ObserveCycle(iterations, anchors int, capped bool, duration time.Duration) {
	outcome := "drained"
	if capped {
		outcome = "capped"
	}
	cyclesTotal.WithLabelValues(outcome).Inc()
	cycleIterations.Observe(float64(iterations))
	cycleDurationSeconds.Observe(duration.Seconds())
	if anchors > 0 {
		anchorsTotal.Add(float64(anchors))
	}
}

// ObserveFragment counts one fragment leaving a cycle.
func ObserveFragment(lang, status string) {
	fragmentsTotal.WithLabelValues(LanguageLabel(lang), status).Inc()
}

// SetEngineThreads publishes the worker count.
func SetEngineThreads(n int) {
	engineThreads.Set(float64(n))
}

// ObserveCollaboratorError counts a failed store, archive or publish call.
func ObserveCollaboratorError(collaborator string) {
	collaboratorErrorsTotal.WithLabelValues(collaborator).Inc()
}

// ObserveRateLimited counts one refused request.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
