// Command agentcrew runs the research → write → review agent workflow and
// streams its progress to the terminal.
//
// Usage:
//
//	agentcrew [flags]
//
// GOOGLE_API_KEY must be set in the environment or a .env file. See
// -help for flags; every flag also has an AGENTCREW_* environment variable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/agentcrew/graph"
	"github.com/dshills/agentcrew/graph/agent"
	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/model/anthropic"
	"github.com/dshills/agentcrew/graph/model/google"
	"github.com/dshills/agentcrew/graph/model/openai"
	"github.com/dshills/agentcrew/graph/store"
	"github.com/dshills/agentcrew/internal/config"
	"github.com/dshills/agentcrew/internal/render"
	"github.com/dshills/agentcrew/internal/report"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (err error) {
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}

	chat, err := newChatModel(cfg)
	if err != nil {
		return err
	}
	searcher := google.NewSearchModel(cfg.GoogleAPIKey, cfg.SearchModel)

	st, err := store.Open[report.State](cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	runID := uuid.NewString()

	registry := prometheus.NewRegistry()
	metrics := graph.NewPrometheusMetrics(registry)
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer shutdown()
	}
	costs := graph.NewCostTracker(runID, "USD")

	var emitters []emit.Emitter
	if cfg.TraceFile != "" {
		otelEmitter, shutdown, terr := newTracing(cfg.TraceFile)
		if terr != nil {
			return terr
		}
		defer func() {
			if serr := shutdown(context.Background()); serr != nil && err == nil {
				err = fmt.Errorf("flush traces: %w", serr)
			}
		}()
		emitters = append(emitters, otelEmitter)
	}
	if cfg.EventsLog != "" {
		f, err := os.Create(cfg.EventsLog)
		if err != nil {
			return fmt.Errorf("open events log: %w", err)
		}
		defer f.Close()
		emitters = append(emitters, emit.NewLogEmitter(f, true))
	}

	wf, err := report.NewWorkflow(report.Deps{
		Model:         chat,
		Searcher:      searcher,
		Store:         st,
		Emitter:       emit.Multi(emitters...),
		MaxToolRounds: cfg.MaxToolRounds,
		EngineOptions: []graph.Option{
			graph.WithMaxSteps(cfg.MaxSteps),
			graph.WithNodeTimeout(cfg.NodeTimeout),
			graph.WithMetrics(metrics),
			graph.WithCostTracker(costs),
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	requirements := cfg.Requirements
	if strings.TrimSpace(requirements) == "" {
		requirements = report.DefaultRequirements
	}

	r, err := render.New(stdout, render.Options{Markdown: cfg.Markdown})
	if err != nil {
		return err
	}

	logger.Info("starting workflow", "run_id", runID, "provider", cfg.Provider, "store", cfg.Store.Driver)
	res, err := execute(ctx, wf, runID, requirements, r)
	if err != nil {
		return err
	}

	in, out := costs.GetTokenUsage()
	logger.Info("workflow finished",
		"run_id", runID,
		"tokens_in", in,
		"tokens_out", out,
		"cost_usd", fmt.Sprintf("%.4f", costs.GetTotalCost()))

	return r.Final(res.State)
}

// execute runs the workflow and renders its events as they arrive. A render
// failure cancels the run; the error is returned once the engine has stopped.
func execute(ctx context.Context, wf *agent.Workflow[report.State], runID, requirements string, r *render.Renderer) (graph.Result[report.State], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h, err := wf.RunWithID(ctx, runID, requirements)
	if err != nil {
		return graph.Result[report.State]{}, err
	}

	for ev := range h.Events() {
		if err := r.Render(ev); err != nil {
			cancel()
			_, _ = h.Wait()
			return graph.Result[report.State]{}, fmt.Errorf("render: %w", err)
		}
	}
	return h.Wait()
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})), nil
}

func newChatModel(cfg *config.Config) (model.ChatModel, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		return google.NewChatModel(cfg.GoogleAPIKey, cfg.Model), nil
	case config.ProviderOpenAI:
		return openai.NewChatModel(cfg.OpenAIAPIKey, cfg.Model), nil
	case config.ProviderAnthropic:
		return anthropic.NewChatModel(cfg.AnthropicAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// serveMetrics exposes the registry on addr/metrics until the returned
// function is called.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// newTracing writes spans for every event to path.
func newTracing(path string) (*emit.OTelEmitter, func(context.Context) error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		return errors.Join(err, f.Close())
	}
	return emit.NewOTelEmitter(tp.Tracer("agentcrew")), shutdown, nil
}
