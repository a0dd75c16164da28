// Package metrics exposes Prometheus collectors for digest runs, summarizer calls and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arkaiv"

// Outcome labels for summarizer attempts.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SummarizerAttempts *prometheus.CounterVec
	SummaryPath        *prometheus.CounterVec
	SummaryCacheHits   prometheus.Counter

	DigestRuns          *prometheus.CounterVec
	DigestDuration      prometheus.Histogram
	DigestLastSuccess   prometheus.Gauge
	DigestToolsObserved prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, including the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}
	m.SummarizerAttempts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "summarizer",
		Name:      "attempts_total",
		Help:      "Summarization provider calls by provider and outcome",
	}, []string{"provider", "outcome"})
	m.SummaryPath = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "summarizer",
		Name:      "summaries_total",
		Help:      "Summaries produced, by the path that produced them",
	}, []string{"path"})
	m.SummaryCacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "summarizer",
		Name:      "cache_hits_total",
		Help:      "Summaries served from the in-process cache",
	})
	m.DigestRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "digest",
		Name:      "runs_total",
		Help:      "Digest generation runs by status",
	}, []string{"status"})
	m.DigestDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "digest",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a digest generation run",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})
	m.DigestLastSuccess = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "digest",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful digest run",
	})
	m.DigestToolsObserved = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "digest",
		Name:      "tools_total",
		Help:      "Tool count seen by the last successful digest run",
	})
	m.HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	m.HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	return m
}

// Registry returns the underlying registry, nil for a nil receiver.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.SummarizerAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveSummaryPath(path string) {
	if m == nil {
		return
	}
	m.SummaryPath.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.SummaryCacheHits.Inc()
}

// ObserveDigestRun records one run. totalTools is only applied on success.
func (m *Metrics) ObserveDigestRun(status string, elapsed time.Duration, totalTools int64, at time.Time) {
	if m == nil {
		return
	}
	m.DigestRuns.WithLabelValues(status).Inc()
	m.DigestDuration.Observe(elapsed.Seconds())
	if status == OutcomeSuccess {
		m.DigestLastSuccess.Set(float64(at.Unix()))
		m.DigestToolsObserved.Set(float64(totalTools))
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
