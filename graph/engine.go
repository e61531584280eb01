package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/state"
	"github.com/dshills/agentcrew/graph/store"
)

// Engine runs agents over a handoff graph.
//
// The Engine:
//   - keeps exactly one agent active at a time
//   - emits agent_transition whenever the active agent changes
//   - honors a handoff only along a HandoffGraph edge
//   - persists a state snapshot after every turn
//   - enforces MaxSteps and the optional per-turn timeout
//
// Type parameter S is the state type shared across the run.
//
// Example:
//
//	g := graph.NewHandoffGraph()
//	_ = g.AddNode("research")
//	_ = g.AddNode("write")
//	_ = g.AddEdge("research", "write")
//
//	engine, _ := graph.New(g, store.NewMemStore[MyState](), emitter, graph.WithMaxSteps(20))
//	_ = engine.Add("research", researchNode)
//	_ = engine.Add("write", writeNode)
//	_ = engine.StartAt("research")
//
//	out, err := engine.Run(ctx, "run-001", state.New(MyState{}), model.NewTranscript())
type Engine[S any] struct {
	mu sync.RWMutex

	graph     *HandoffGraph
	nodes     map[string]Node[S]
	startNode string

	store   store.Store[S]
	emitter emit.Emitter
	opts    Options
	logger  *slog.Logger
}

// New creates an Engine. A nil graph starts empty; a nil emitter discards
// events.
func New[S any](g *HandoffGraph, st store.Store[S], emitter emit.Emitter, options ...Option) (*Engine[S], error) {
	cfg := &engineConfig{}
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if g == nil {
		g = NewHandoffGraph()
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	logger := cfg.opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine[S]{
		graph:   g,
		nodes:   make(map[string]Node[S]),
		store:   st,
		emitter: emitter,
		opts:    cfg.opts,
		logger:  logger,
	}, nil
}

// Graph returns the engine's handoff graph.
func (e *Engine[S]) Graph() *HandoffGraph {
	return e.graph
}

// Options returns the engine's effective options.
func (e *Engine[S]) Options() Options {
	return e.opts
}

// Add registers a node. The node is declared in the handoff graph if it is
// not there yet.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    CodeDuplicateNode,
		}
	}
	if err := e.graph.AddNode(nodeID); err != nil {
		return err
	}

	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the root agent.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty", Code: CodeNoStartNode}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    CodeNodeNotFound,
		}
	}

	e.startNode = nodeID
	return nil
}

// Run executes a workflow until an agent stops or an error occurs, emitting
// events to the engine's emitter. It returns the final agent's output.
//
// st and transcript belong to this run; the caller seeds them with the
// initial state and the user message.
func (e *Engine[S]) Run(ctx context.Context, runID string, st *state.Shared[S], transcript *model.Transcript) (string, error) {
	return e.run(ctx, runID, st, transcript, e.emitter)
}

func (e *Engine[S]) run(ctx context.Context, runID string, st *state.Shared[S], transcript *model.Transcript, emitter emit.Emitter) (string, error) {
	e.mu.RLock()
	start := e.startNode
	e.mu.RUnlock()

	logger := e.logger.With("run_id", runID)

	fail := func(step int, nodeID string, err error) (string, error) {
		logger.Error("workflow failed", "step", step, "agent", nodeID, "error", err)
		emitter.Emit(emit.Event{
			Kind:    emit.KindWorkflowError,
			RunID:   runID,
			Step:    step,
			NodeID:  nodeID,
			Msg:     "workflow failed",
			IsError: true,
			Meta:    map[string]any{"error": err.Error()},
		})
		return "", err
	}

	if start == "" {
		return fail(0, "", &EngineError{
			Message: "start node not set (call StartAt before Run)",
			Code:    CodeNoStartNode,
		})
	}
	if e.store == nil {
		return fail(0, "", &EngineError{Message: "store is required", Code: CodeStoreError})
	}
	if st == nil {
		st = state.New(*new(S))
	}
	if transcript == nil {
		transcript = model.NewTranscript()
	}

	logger.Info("workflow started", "agent", start)
	emitter.Emit(emit.Event{
		Kind:   emit.KindWorkflowStart,
		RunID:  runID,
		NodeID: start,
		Msg:    "workflow started",
	})

	current := start
	previous := ""
	step := 0

	for {
		step++

		if e.opts.MaxSteps > 0 && step > e.opts.MaxSteps {
			return fail(step, current, &EngineError{
				Message: fmt.Sprintf("workflow exceeded MaxSteps limit of %d", e.opts.MaxSteps),
				Code:    CodeMaxStepsExceeded,
				Cause:   ErrMaxStepsExceeded,
			})
		}

		if err := ctx.Err(); err != nil {
			return fail(step, current, err)
		}

		e.mu.RLock()
		node, exists := e.nodes[current]
		e.mu.RUnlock()
		if !exists {
			return fail(step, current, &EngineError{
				Message: "node not found during execution: " + current,
				Code:    CodeNodeNotFound,
			})
		}

		if current != previous {
			emitter.Emit(emit.Event{
				Kind:   emit.KindAgentTransition,
				RunID:  runID,
				Step:   step,
				NodeID: current,
				From:   previous,
				Msg:    "agent activated",
			})
			if previous != "" {
				e.opts.Metrics.IncrementHandoffs(previous, current)
			}
			logger.Debug("agent activated", "step", step, "agent", current, "from", previous)
			previous = current
		}

		rc := &RunContext[S]{
			RunID:      runID,
			Step:       step,
			NodeID:     current,
			State:      st,
			Transcript: transcript,
			Emitter:    emitter,
			Metrics:    e.opts.Metrics,
			Costs:      e.opts.CostTracker,
			Logger:     logger.With("agent", current),
		}

		began := time.Now()
		result := runNodeWithTimeout(ctx, node, rc, e.opts.NodeTimeout)
		elapsed := time.Since(began)

		if result.Err != nil {
			status := "error"
			if ErrorCode(result.Err) == CodeNodeTimeout {
				status = "timeout"
			}
			e.opts.Metrics.RecordStep(current, elapsed, status)
			return fail(step, current, result.Err)
		}
		e.opts.Metrics.RecordStep(current, elapsed, "success")

		snapshot, version, err := st.Get()
		if err != nil {
			return fail(step, current, &EngineError{
				Message: "failed to snapshot state",
				Code:    CodeStoreError,
				Cause:   err,
			})
		}
		if err := e.store.SaveStep(ctx, runID, step, current, snapshot); err != nil {
			return fail(step, current, &EngineError{
				Message: "failed to save step",
				Code:    CodeStoreError,
				Cause:   err,
			})
		}
		emitter.Emit(emit.Event{
			Kind:   emit.KindStepSaved,
			RunID:  runID,
			Step:   step,
			NodeID: current,
			Msg:    "step saved",
			Meta: map[string]any{
				"version":     version,
				"duration_ms": elapsed.Milliseconds(),
			},
		})

		if result.Route.Terminal {
			logger.Info("workflow completed", "steps", step, "agent", current)
			emitter.Emit(emit.Event{
				Kind:   emit.KindWorkflowEnd,
				RunID:  runID,
				Step:   step,
				NodeID: current,
				Text:   result.Output,
				Msg:    "workflow completed",
			})
			return result.Output, nil
		}

		next := result.Route.To
		if next == "" {
			return fail(step, current, &EngineError{
				Message: "agent returned no route: " + current,
				Code:    CodeNoRoute,
			})
		}
		if !e.graph.Allows(current, next) {
			return fail(step, current, &EngineError{
				Message: fmt.Sprintf("%s cannot hand off to %s", current, next),
				Code:    CodeHandoffRejected,
				Cause:   ErrHandoffRejected,
			})
		}

		current = next
	}
}

// SaveCheckpoint stores the latest snapshot of runID under cpID.
func (e *Engine[S]) SaveCheckpoint(ctx context.Context, runID, cpID string) error {
	latest, step, err := e.store.LoadLatest(ctx, runID)
	if err != nil {
		return &EngineError{
			Message: "cannot create checkpoint for run " + runID,
			Code:    CodeStoreError,
			Cause:   err,
		}
	}
	if err := e.store.SaveCheckpoint(ctx, cpID, latest, step); err != nil {
		return &EngineError{
			Message: "failed to save checkpoint " + cpID,
			Code:    CodeStoreError,
			Cause:   err,
		}
	}
	return nil
}

// LoadCheckpoint returns the state saved under cpID.
func (e *Engine[S]) LoadCheckpoint(ctx context.Context, cpID string) (S, int, error) {
	st, step, err := e.store.LoadCheckpoint(ctx, cpID)
	if err != nil {
		var zero S
		if errors.Is(err, store.ErrNotFound) {
			return zero, 0, &EngineError{Message: "checkpoint not found: " + cpID, Code: CodeStoreError, Cause: err}
		}
		return zero, 0, err
	}
	return st, step, nil
}
