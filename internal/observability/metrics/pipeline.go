package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics implements ports.PipelineObserver on a Prometheus registry.
type PipelineMetrics struct {
	service string

	queriesTotal      *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	degradationsTotal *prometheus.CounterVec
	fetchesTotal      *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
	articles          *prometheus.HistogramVec
	confidence        *prometheus.HistogramVec
	limiterWait       *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Answered queries by final status.",
		},
		[]string{"service", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "query_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"service", "status"},
	)
	degradationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "degradations_total",
			Help:      "Stages that took a fallback path.",
		},
		[]string{"service", "stage"},
	)
	fetchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "fetches_total",
			Help:      "Content fetch attempts by method and result.",
		},
		[]string{"service", "method", "result"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache and result.",
		},
		[]string{"service", "cache", "result"},
	)
	articles := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "articles",
			Help:      "Articles acquired per query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "confidence",
			Help:      "Distribution of answer confidence scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"service"},
	)
	limiterWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "limiter_wait_seconds",
			Help:      "Time generation calls spent queued behind the rate limiter.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service"},
	)

	registerer.MustRegister(
		queriesTotal,
		queryDuration,
		degradationsTotal,
		fetchesTotal,
		cacheLookupsTotal,
		articles,
		confidence,
		limiterWait,
	)

	return &PipelineMetrics{
		service:           service,
		queriesTotal:      queriesTotal,
		queryDuration:     queryDuration,
		degradationsTotal: degradationsTotal,
		fetchesTotal:      fetchesTotal,
		cacheLookupsTotal: cacheLookupsTotal,
		articles:          articles,
		confidence:        confidence,
		limiterWait:       limiterWait,
	}
}

func (m *PipelineMetrics) ObserveQuery(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.queriesTotal.WithLabelValues(m.service, status).Inc()
	m.queryDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveDegradation(stage, _ string) {
	m.degradationsTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *PipelineMetrics) ObserveFetch(method, result string) {
	m.fetchesTotal.WithLabelValues(m.service, method, result).Inc()
}

func (m *PipelineMetrics) ObserveCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(m.service, cache, result).Inc()
}

func (m *PipelineMetrics) ObserveArticles(count int) {
	m.articles.WithLabelValues(m.service).Observe(float64(count))
}

func (m *PipelineMetrics) ObserveConfidence(score float64) {
	m.confidence.WithLabelValues(m.service).Observe(score)
}

// ObserveLimiterWait matches ratelimit.Limiter.OnWait.
func (m *PipelineMetrics) ObserveLimiterWait(wait time.Duration) {
	if wait <= 0 {
		return
	}
	m.limiterWait.WithLabelValues(m.service).Observe(wait.Seconds())
}
