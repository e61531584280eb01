package graph

import (
	"fmt"
	"log/slog"
	"time"
)

// Options configures Engine execution behavior.
//
// Zero values are valid.
type Options struct {
	// MaxSteps limits the number of agent turns in a run. If 0, no limit is
	// enforced. When exceeded, Run returns an EngineError with code
	// MAX_STEPS_EXCEEDED.
	MaxSteps int

	// NodeTimeout bounds a single agent turn. Zero disables the timeout.
	NodeTimeout time.Duration

	// Metrics receives engine metrics. Nil disables them.
	Metrics *PrometheusMetrics

	// CostTracker records LLM usage reported by agents. Nil disables it.
	CostTracker *CostTracker

	// Logger receives engine diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := graph.New(g, st, emitter,
//	    graph.WithMaxSteps(30),
//	    graph.WithNodeTimeout(5*time.Minute),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	opts Options
}

// WithMaxSteps limits the number of agent turns per run.
//
// Agents may hand work back and forth (WriteAgent → ReviewAgent →
// WriteAgent ...). MaxSteps stops a run whose agents never converge.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return &EngineError{
				Message: fmt.Sprintf("max steps must be >= 0, got %d", n),
				Code:    CodeInvalidOption,
			}
		}
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithNodeTimeout bounds each agent turn. A turn that overruns fails the
// run with code NODE_TIMEOUT.
func WithNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{
				Message: fmt.Sprintf("node timeout must be >= 0, got %v", d),
				Code:    CodeInvalidOption,
			}
		}
		cfg.opts.NodeTimeout = d
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	metrics := graph.NewPrometheusMetrics(prometheus.DefaultRegisterer)
//	engine, _ := graph.New(g, st, emitter, graph.WithMetrics(metrics))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}

// WithCostTracker enables LLM cost accounting.
func WithCostTracker(tracker *CostTracker) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.CostTracker = tracker
		return nil
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Logger = logger
		return nil
	}
}

// WithOptions applies a whole Options struct.
func WithOptions(opts Options) Option {
	return func(cfg *engineConfig) error {
		cfg.opts = opts
		return nil
	}
}
