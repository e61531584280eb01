package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dshills/agentcrew/graph"
	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/store"
	"github.com/dshills/agentcrew/graph/tool"
)

// ErrInvalidWorkflow wraps every configuration error reported by NewWorkflow.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// WorkflowConfig describes a multi-agent workflow.
type WorkflowConfig[S any] struct {
	// Agents are the personas. Each is copied; later changes to the
	// caller's values have no effect.
	Agents []*FunctionAgent[S]

	// Tools holds every tool any agent may call.
	Tools *tool.Registry[S]

	// Root is the agent that receives the user message.
	Root string

	// InitialState seeds the shared state of every run.
	InitialState S

	// Store persists step snapshots. Nil uses an in-memory store.
	Store store.Store[S]

	// Emitter receives every event in addition to the run's stream.
	Emitter emit.Emitter

	// EngineOptions configure limits, metrics, cost tracking and logging.
	EngineOptions []graph.Option

	Logger *slog.Logger
}

// Workflow is a validated, ready-to-run set of agents.
//
// Example:
//
//	wf, err := agent.NewWorkflow(agent.WorkflowConfig[report.State]{
//	    Agents:       []*agent.FunctionAgent[report.State]{research, write, review},
//	    Tools:        registry,
//	    Root:         "ResearchAgent",
//	    InitialState: report.NewState(),
//	})
//	h, err := wf.Run(ctx, "Write a PRD for ...")
type Workflow[S any] struct {
	engine  *graph.Engine[S]
	agents  map[string]*FunctionAgent[S]
	order   []string
	root    string
	initial S
	logger  *slog.Logger
}

// NewWorkflow validates cfg and builds the handoff graph and engine.
//
// It rejects duplicate or empty agent names, handoff targets that are not
// agents of the workflow, tools missing from the registry, a missing model
// and an unknown root.
func NewWorkflow[S any](cfg WorkflowConfig[S]) (*Workflow[S], error) {
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("%w: no agents", ErrInvalidWorkflow)
	}
	registry := cfg.Tools
	if registry == nil {
		var err error
		if registry, err = tool.NewRegistry[S](); err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	agents := make(map[string]*FunctionAgent[S], len(cfg.Agents))
	order := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a == nil {
			return nil, fmt.Errorf("%w: nil agent", ErrInvalidWorkflow)
		}
		if a.Name == "" {
			return nil, fmt.Errorf("%w: agent name cannot be empty", ErrInvalidWorkflow)
		}
		if a.Name == HandoffToolName {
			return nil, fmt.Errorf("%w: agent name %q is reserved", ErrInvalidWorkflow, a.Name)
		}
		if _, dup := agents[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate agent %s", ErrInvalidWorkflow, a.Name)
		}
		if a.Model == nil {
			return nil, fmt.Errorf("%w: agent %s has no model", ErrInvalidWorkflow, a.Name)
		}

		cp := *a
		cp.Tools = append([]string(nil), a.Tools...)
		cp.CanHandoffTo = append([]string(nil), a.CanHandoffTo...)
		agents[a.Name] = &cp
		order = append(order, a.Name)
	}

	if _, ok := agents[cfg.Root]; !ok {
		return nil, fmt.Errorf("%w: root agent %q is not an agent of the workflow", ErrInvalidWorkflow, cfg.Root)
	}

	g := graph.NewHandoffGraph()
	for _, name := range order {
		if err := g.AddNode(name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
		}
	}

	for _, name := range order {
		a := agents[name]
		for _, toolName := range a.Tools {
			if toolName == HandoffToolName {
				return nil, fmt.Errorf("%w: agent %s lists reserved tool %q", ErrInvalidWorkflow, name, toolName)
			}
			if _, ok := registry.Lookup(toolName); !ok {
				return nil, fmt.Errorf("%w: agent %s uses unknown tool %s", ErrInvalidWorkflow, name, toolName)
			}
		}

		targets := make(map[string]string, len(a.CanHandoffTo))
		for _, to := range a.CanHandoffTo {
			peer, ok := agents[to]
			if !ok {
				return nil, fmt.Errorf("%w: agent %s can hand off to unknown agent %s", ErrInvalidWorkflow, name, to)
			}
			if err := g.AddEdge(name, to); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
			}
			targets[to] = peer.Description
		}
		a.bind(registry, targets)
	}

	unreachable, err := g.Validate(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
	}
	if len(unreachable) > 0 {
		logger.Warn("agents unreachable from root", "root", cfg.Root, "agents", unreachable)
	}

	st := cfg.Store
	if st == nil {
		st = store.NewMemStore[S]()
	}

	opts := append([]graph.Option{graph.WithLogger(logger)}, cfg.EngineOptions...)
	engine, err := graph.New(g, st, cfg.Emitter, opts...)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		if err := engine.Add(name, agents[name]); err != nil {
			return nil, err
		}
	}
	if err := engine.StartAt(cfg.Root); err != nil {
		return nil, err
	}

	return &Workflow[S]{
		engine:  engine,
		agents:  agents,
		order:   order,
		root:    cfg.Root,
		initial: cfg.InitialState,
		logger:  logger,
	}, nil
}

// Run starts a run with a fresh shared state and a transcript holding
// userMsg. The run executes in the background; consume Events on the
// returned handler, then call Wait.
func (w *Workflow[S]) Run(ctx context.Context, userMsg string) (*graph.Handler[S], error) {
	return w.RunWithID(ctx, uuid.NewString(), userMsg)
}

// RunWithID is Run with a caller-chosen run ID.
func (w *Workflow[S]) RunWithID(ctx context.Context, runID, userMsg string) (*graph.Handler[S], error) {
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.logger.Info("starting workflow", "run_id", runID, "root", w.root, "agents", w.order)
	return graph.Start(ctx, w.engine, runID, w.initial, userMsg), nil
}

// Agent returns the bound copy of the named agent.
func (w *Workflow[S]) Agent(name string) (*FunctionAgent[S], bool) {
	a, ok := w.agents[name]
	return a, ok
}

// Root returns the root agent name.
func (w *Workflow[S]) Root() string {
	return w.root
}

// Engine returns the underlying engine.
func (w *Workflow[S]) Engine() *graph.Engine[S] {
	return w.engine
}
