package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects workflow metrics for Prometheus.
//
// Metrics (namespace "agentcrew"):
//   - steps_total{agent,status}: completed agent turns
//   - step_latency_ms{agent,status}: turn duration histogram
//   - tool_calls_total{tool,status}: tool invocations (status: success, error, rejected)
//   - handoffs_total{from,to}: agent transitions
//   - state_edits_total{tool,status}: shared state edits made by tools
//   - llm_tokens_total{model,direction}: token usage (direction: input, output)
//
// All methods are safe on a nil receiver, so callers never need to check
// whether metrics are enabled.
//
// Example:
//
//	metrics := graph.NewPrometheusMetrics(prometheus.DefaultRegisterer)
//	http.Handle("/metrics", promhttp.Handler())
type PrometheusMetrics struct {
	steps       *prometheus.CounterVec
	stepLatency *prometheus.HistogramVec
	toolCalls   *prometheus.CounterVec
	handoffs    *prometheus.CounterVec
	stateEdits  *prometheus.CounterVec
	tokens      *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers the workflow metrics with registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.steps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcrew",
		Name:      "steps_total",
		Help:      "Completed agent turns",
	}, []string{"agent", "status"})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentcrew",
		Name:      "step_latency_ms",
		Help:      "Agent turn duration in milliseconds",
		Buckets:   []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 120000, 300000},
	}, []string{"agent", "status"})

	pm.toolCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcrew",
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool and outcome",
	}, []string{"tool", "status"})

	pm.handoffs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcrew",
		Name:      "handoffs_total",
		Help:      "Transfers of control between agents",
	}, []string{"from", "to"})

	pm.stateEdits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcrew",
		Name:      "state_edits_total",
		Help:      "Shared state edits by tool and outcome",
	}, []string{"tool", "status"})

	pm.tokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcrew",
		Name:      "llm_tokens_total",
		Help:      "LLM tokens consumed by model and direction",
	}, []string{"model", "direction"})

	return pm
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordStep records a finished agent turn. status is one of success, error
// or timeout.
func (pm *PrometheusMetrics) RecordStep(agent string, latency time.Duration, status string) {
	if !pm.on() {
		return
	}
	pm.steps.WithLabelValues(agent, status).Inc()
	pm.stepLatency.WithLabelValues(agent, status).Observe(float64(latency.Milliseconds()))
}

// IncrementToolCalls counts a tool invocation.
func (pm *PrometheusMetrics) IncrementToolCalls(tool, status string) {
	if !pm.on() {
		return
	}
	pm.toolCalls.WithLabelValues(tool, status).Inc()
}

// IncrementHandoffs counts a transfer of control.
func (pm *PrometheusMetrics) IncrementHandoffs(from, to string) {
	if !pm.on() {
		return
	}
	pm.handoffs.WithLabelValues(from, to).Inc()
}

// IncrementStateEdits counts a shared state edit attempted by a tool.
func (pm *PrometheusMetrics) IncrementStateEdits(tool, status string) {
	if !pm.on() {
		return
	}
	pm.stateEdits.WithLabelValues(tool, status).Inc()
}

// AddTokens records LLM token usage.
func (pm *PrometheusMetrics) AddTokens(model string, input, output int) {
	if !pm.on() {
		return
	}
	pm.tokens.WithLabelValues(model, "input").Add(float64(input))
	pm.tokens.WithLabelValues(model, "output").Add(float64(output))
}

// Disable stops metric collection.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes metric collection.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
