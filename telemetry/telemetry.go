// Package telemetry exports Prometheus metrics for the memory service.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter collects request, LLM and embedding metrics on its own
// registry so the metrics endpoint only serves what the server emits.
type Exporter struct {
	registry *prometheus.Registry

	// Request metrics
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	healthchecks   prometheus.Counter

	// LLM metrics
	llmInvocations *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec

	// Embedding metrics
	embeddingTokens  *prometheus.CounterVec
	embeddingLatency *prometheus.HistogramVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// Version and Environment label the build info metric.
	Version     string
	Environment string
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewExporter creates an exporter with all metric families registered.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of authenticated API requests",
		},
		[]string{"project_id", "path", "method"},
	)

	e.requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memoria",
			Subsystem: "server",
			Name:      "request_latency_seconds",
			Help:      "API request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"project_id", "path", "method"},
	)

	e.healthchecks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "server",
			Name:      "healthchecks_total",
			Help:      "Total number of healthcheck requests",
		},
	)

	e.llmInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "llm",
			Name:      "invocations_total",
			Help:      "Total number of chat completion calls",
		},
		[]string{"project_id"},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens by direction",
		},
		[]string{"project_id", "direction"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memoria",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Chat completion latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"project_id"},
	)

	e.embeddingTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Total tokens sent to the embedding provider",
		},
		[]string{"project_id"},
	)

	e.embeddingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memoria",
			Subsystem: "embedding",
			Name:      "latency_seconds",
			Help:      "Embedding request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"project_id"},
	)

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "memoria",
			Name:      "build_info",
			Help:      "Build and deployment metadata, value is always 1",
		},
		[]string{"version", "environment"},
	)
	buildInfo.WithLabelValues(cfg.Version, cfg.Environment).Set(1)

	registry.MustRegister(
		e.requests,
		e.requestLatency,
		e.healthchecks,
		e.llmInvocations,
		e.llmTokens,
		e.llmLatency,
		e.embeddingTokens,
		e.embeddingLatency,
		buildInfo,
	)

	return e
}

// RecordRequest records one authenticated API request.
func (e *Exporter) RecordRequest(projectID, path, method string, latency time.Duration) {
	e.requests.WithLabelValues(projectID, path, method).Inc()
	e.requestLatency.WithLabelValues(projectID, path, method).Observe(latency.Seconds())
}

// RecordHealthcheck records a healthcheck hit.
func (e *Exporter) RecordHealthcheck() {
	e.healthchecks.Inc()
}

// RecordLLMCall records token usage and latency of a completion call.
func (e *Exporter) RecordLLMCall(projectID string, inTokens, outTokens int, latency time.Duration) {
	e.llmInvocations.WithLabelValues(projectID).Inc()
	e.llmTokens.WithLabelValues(projectID, "input").Add(float64(inTokens))
	e.llmTokens.WithLabelValues(projectID, "output").Add(float64(outTokens))
	e.llmLatency.WithLabelValues(projectID).Observe(latency.Seconds())
}

// RecordEmbedding records token usage and latency of an embedding call.
func (e *Exporter) RecordEmbedding(projectID string, tokens int, latency time.Duration) {
	e.embeddingTokens.WithLabelValues(projectID).Add(float64(tokens))
	e.embeddingLatency.WithLabelValues(projectID).Observe(latency.Seconds())
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
