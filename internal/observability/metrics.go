// Package observability exposes Prometheus instruments for the sample
// pipeline and external tool invocations.
package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maauso/cyn-api/internal/audio"
)

// Namespace prefixes every metric name.
const Namespace = "cyn"

// Tool invocation results.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultTimeout  = "timeout"
	ResultNotFound = "not_found"
)

// Metrics groups all Prometheus instruments used by the service. Each
// instance owns its registry so tests and multiple servers do not clash.
type Metrics struct {
	registry *prometheus.Registry

	SampleOutcomes *prometheus.CounterVec
	ChunksCreated  prometheus.Counter
	ToolCalls      *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec
}

// NewMetrics creates the instruments on a fresh registry. Process and Go
// runtime collectors are registered alongside.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SampleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sample_outcomes_total",
			Help:      "Per-file pipeline outcomes by stage and outcome.",
		}, []string{"stage", "outcome"}),
		ChunksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chunks_created_total",
			Help:      "Chunk files written by the splitter.",
		}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_invocations_total",
			Help:      "External tool invocations by tool and result.",
		}, []string{"tool", "result"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tool_duration_seconds",
			Help:      "External tool wall time in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"tool"}),
	}
}

// ObserveOutcome counts one per-file outcome.
func (m *Metrics) ObserveOutcome(stage string, kind audio.OutcomeKind) {
	m.SampleOutcomes.WithLabelValues(stage, string(kind)).Inc()
}

// AddChunks counts chunk files written in one split.
func (m *Metrics) AddChunks(n int) {
	if n > 0 {
		m.ChunksCreated.Add(float64(n))
	}
}

// ObserveTool records one external tool invocation. Its signature matches
// audio.Observer.
func (m *Metrics) ObserveTool(tool string, elapsed time.Duration, err error) {
	m.ToolCalls.WithLabelValues(tool, toolResult(err)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func toolResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, audio.ErrToolTimeout):
		return ResultTimeout
	case errors.Is(err, audio.ErrToolNotFound):
		return ResultNotFound
	default:
		return ResultError
	}
}
