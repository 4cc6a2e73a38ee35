// Package metrics provides Prometheus metrics for the prospect pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Manager owns a registry and every collector the pipeline reports to.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	pagesFetched   *prometheus.CounterVec
	crawlDuration  prometheus.Histogram
	prospectsSaved *prometheus.CounterVec
	campaignRuns   *prometheus.CounterVec

	llmRequests        *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	modelTrainings *prometheus.CounterVec
	scoringLatency prometheus.Histogram

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a manager on a private registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "prospect",
		subsystem:        "scanner",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.pagesFetched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pages_fetched_total",
		Help:      "Pages fetched by the site crawler, by outcome",
	}, []string{"outcome"})

	m.crawlDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "crawl_duration_seconds",
		Help:      "Wall time of a single-site crawl",
		Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
	})

	m.prospectsSaved = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prospects_saved_total",
		Help:      "Prospect upserts, by outcome",
	}, []string{"outcome"})

	m.campaignRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "campaign_runs_total",
		Help:      "Campaign and crawl batch runs, by kind",
	}, []string{"kind"})

	m.llmRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "llm_requests_total",
		Help:      "Chat completion calls, by provider and outcome",
	}, []string{"provider", "outcome"})

	m.llmRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "llm_request_duration_seconds",
		Help:      "Chat completion latency including retries",
		Buckets:   m.histogramBuckets,
	}, []string{"provider"})

	m.modelTrainings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_trainings_total",
		Help:      "Ensemble training runs, by outcome",
	}, []string{"outcome"})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_duration_seconds",
		Help:      "Time to score one prospect with the ensemble",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "API requests, by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry exposes the underlying registry for custom collectors and tests.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPageFetch counts one crawler fetch.
func (m *Manager) RecordPageFetch(outcome string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(outcome).Inc()
}

// ObserveCrawl records the duration of a whole-site crawl.
func (m *Manager) ObserveCrawl(d time.Duration) {
	if m == nil {
		return
	}
	m.crawlDuration.Observe(d.Seconds())
}

// RecordProspectSaved counts one repository upsert.
func (m *Manager) RecordProspectSaved(outcome string) {
	if m == nil {
		return
	}
	m.prospectsSaved.WithLabelValues(outcome).Inc()
}

// RecordRun counts a pipeline run of the given kind ("campaign", "crawl").
func (m *Manager) RecordRun(kind string) {
	if m == nil {
		return
	}
	m.campaignRuns.WithLabelValues(kind).Inc()
}

// ObserveLLMRequest records one chat completion call.
func (m *Manager) ObserveLLMRequest(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(provider, outcome).Inc()
	m.llmRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordTraining counts one ensemble training run.
func (m *Manager) RecordTraining(outcome string) {
	if m == nil {
		return
	}
	m.modelTrainings.WithLabelValues(outcome).Inc()
}

// ObserveScoring records the latency of one ensemble score.
func (m *Manager) ObserveScoring(d time.Duration) {
	if m == nil {
		return
	}
	m.scoringLatency.Observe(d.Seconds())
}

// ObserveHTTPRequest records one API request.
func (m *Manager) ObserveHTTPRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
