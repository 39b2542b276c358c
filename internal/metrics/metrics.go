// Package metrics exposes Prometheus instrumentation for query runs, the
// semantic cache and document ingestion.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentrag"

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the application collectors on a private registry. All
// methods are safe on a nil receiver so callers may run uninstrumented.
type Metrics struct {
	registry *prometheus.Registry

	Runs           *prometheus.CounterVec
	RunLatency     prometheus.Histogram
	StageLatency   *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	CacheWrites    *prometheus.CounterVec
	IngestedChunks prometheus.Counter
	IngestErrors   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs by outcome.",
		}, []string{"outcome"}),

		RunLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of individual pipeline stages in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Semantic cache lookups by result.",
		}, []string{"result"}),

		CacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Semantic cache writes by status.",
		}, []string{"status"}),

		IngestedChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Document chunks embedded and written to the index.",
		}),

		IngestErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Documents that failed to ingest.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunLatency.Observe(seconds)
}

func (m *Metrics) RecordStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheWrite(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.CacheWrites.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordIngest(chunks int, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.IngestErrors.Inc()
		return
	}
	m.IngestedChunks.Add(float64(chunks))
}
