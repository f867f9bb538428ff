package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ValidationRunsTotal   *prometheus.CounterVec
	ValidationRunDuration *prometheus.HistogramVec
	ValidationLoops       prometheus.Histogram

	GraderRequestsTotal   *prometheus.CounterVec
	GraderRequestDuration prometheus.Histogram

	GeneratorRequestsTotal   *prometheus.CounterVec
	GeneratorRequestDuration prometheus.Histogram

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal  prometheus.Counter
	PersistenceFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsidy_bot_requests_total",
				Help: "Total number of assistant requests processed",
			},
			[]string{"status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subsidy_bot_request_duration_seconds",
				Help:    "Assistant request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{},
		),
		RequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "subsidy_bot_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),

		ValidationRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsidy_bot_validation_runs_total",
				Help: "Total number of feedback-loop runs by terminal state",
			},
			[]string{"state"},
		),
		ValidationRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subsidy_bot_validation_run_duration_seconds",
				Help:    "Feedback-loop run duration in seconds",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
			},
			[]string{},
		),
		ValidationLoops: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "subsidy_bot_validation_loops",
				Help:    "Number of loops executed per validation run",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),

		GraderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsidy_bot_grader_requests_total",
				Help: "Total number of grader API requests",
			},
			[]string{"status"},
		),
		GraderRequestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "subsidy_bot_grader_request_duration_seconds",
				Help:    "Grader request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		GeneratorRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsidy_bot_generator_requests_total",
				Help: "Total number of answer-generator requests",
			},
			[]string{"op", "status"},
		),
		GeneratorRequestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "subsidy_bot_generator_request_duration_seconds",
				Help:    "Answer-generator request duration in seconds",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
			},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "subsidy_bot_cache_hits_total",
				Help: "Total number of critique cache hits",
			},
		),
		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "subsidy_bot_cache_misses_total",
				Help: "Total number of critique cache misses",
			},
		),

		RateLimitHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "subsidy_bot_rate_limit_hits_total",
				Help: "Total number of rate limit rejections",
			},
		),
		PersistenceFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "subsidy_bot_persistence_failures_total",
				Help: "Total number of swallowed diagnostic-write failures",
			},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordRequest(status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(status).Inc()
	m.RequestDuration.WithLabelValues().Observe(duration.Seconds())
}

func (m *Metrics) RecordValidationRun(state string, duration time.Duration) {
	m.ValidationRunsTotal.WithLabelValues(state).Inc()
	m.ValidationRunDuration.WithLabelValues().Observe(duration.Seconds())
}

func (m *Metrics) ObserveValidationLoops(loops int) {
	m.ValidationLoops.Observe(float64(loops))
}

func (m *Metrics) RecordGraderRequest(status string, duration time.Duration) {
	m.GraderRequestsTotal.WithLabelValues(status).Inc()
	m.GraderRequestDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordGeneratorRequest(op, status string, duration time.Duration) {
	m.GeneratorRequestsTotal.WithLabelValues(op, status).Inc()
	m.GeneratorRequestDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHitsTotal.Inc()
}

func (m *Metrics) RecordPersistenceFailure() {
	m.PersistenceFailures.Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
