// Package metrics exports planner activity as Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planner"

// Recorder collects node, generation and run metrics on its own registry.
// It implements core.Observer.
type Recorder struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	units        *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	generations  *prometheus.CounterVec
	runs         *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_attempts_total",
			Help:      "Exec attempts per node, by outcome.",
		}, []string{"node", "outcome"}),
		nodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_runs_total",
			Help:      "Completed node runs, by outcome.",
		}, []string{"node", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Wall time of one node run including retries and fan-out.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"node"}),
		units: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_units",
			Help:      "Work units produced by Prep per node run.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"node"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the model provider.",
		}, []string{"model", "kind"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_generations_total",
			Help:      "Generation calls, by outcome.",
		}, []string{"model", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Workflow runs, by final status.",
		}, []string{"workflow", "status"}),
	}
	r.registry.MustRegister(
		r.attempts, r.nodeRuns, r.nodeDuration, r.units, r.tokens, r.generations, r.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAttempt implements core.Observer.
func (r *Recorder) ObserveAttempt(node string, _ int, _ time.Duration, err error) {
	r.attempts.WithLabelValues(node, outcome(err)).Inc()
}

// ObserveNode implements core.Observer.
func (r *Recorder) ObserveNode(node string, units int, elapsed time.Duration, err error) {
	r.nodeRuns.WithLabelValues(node, outcome(err)).Inc()
	r.nodeDuration.WithLabelValues(node).Observe(elapsed.Seconds())
	r.units.WithLabelValues(node).Observe(float64(units))
}

// ObserveRun counts one finished workflow run.
func (r *Recorder) ObserveRun(workflow, status string) {
	r.runs.WithLabelValues(workflow, status).Inc()
}

// WrapGenerator returns a generator that reports token usage of every call.
func (r *Recorder) WrapGenerator(g llm.Generator) llm.Generator {
	return &meteredGenerator{next: g, rec: r}
}

type meteredGenerator struct {
	next llm.Generator
	rec  *Recorder
}

func (m *meteredGenerator) Model() string { return m.next.Model() }

func (m *meteredGenerator) Generate(ctx context.Context, prompt string) (llm.Generation, error) {
	gen, err := m.next.Generate(ctx, prompt)
	model := gen.Model
	if model == "" {
		model = m.next.Model()
	}
	m.rec.generations.WithLabelValues(model, outcome(err)).Inc()
	if err == nil {
		m.rec.tokens.WithLabelValues(model, "prompt").Add(float64(gen.Usage.PromptTokens))
		m.rec.tokens.WithLabelValues(model, "completion").Add(float64(gen.Usage.CompletionTokens))
	}
	return gen, err
}
