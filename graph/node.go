package graph

import (
	"context"
	"log/slog"

	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/state"
)

// Node is one agent in the handoff graph. Each activation is a turn: the node
// reads the shared transcript, mutates shared state through RunContext.State,
// and returns where control goes next.
//
// Type parameter S is the shared state type.
type Node[S any] interface {
	Run(ctx context.Context, rc *RunContext[S]) NodeResult
}

// NodeResult is the outcome of one turn.
type NodeResult struct {
	// Route says which agent runs next, or Stop to end the run.
	Route Next

	// Output is the agent's final text. For a terminal turn it becomes the
	// run's result.
	Output string

	// Err aborts the run when non-nil.
	Err error
}

// Next specifies what happens after a turn.
type Next struct {
	// To is the agent that takes over. Must be a handoff target of the
	// current agent.
	To string

	// Terminal ends the run.
	Terminal bool
}

// Stop returns a Next that ends the run.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that hands control to nodeID.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// NodeFunc adapts a plain function to the Node interface.
//
// Example:
//
//	echo := graph.NodeFunc[MyState](func(ctx context.Context, rc *graph.RunContext[MyState]) graph.NodeResult {
//	    return graph.NodeResult{Output: "done", Route: graph.Stop()}
//	})
type NodeFunc[S any] func(ctx context.Context, rc *RunContext[S]) NodeResult

// Run implements Node.
func (f NodeFunc[S]) Run(ctx context.Context, rc *RunContext[S]) NodeResult {
	return f(ctx, rc)
}

// RunContext is everything a node may touch during its turn.
type RunContext[S any] struct {
	RunID  string
	Step   int
	NodeID string

	// State is the run's shared state. Mutate it only through Edit.
	State *state.Shared[S]

	// Transcript is the conversation shared by every agent of the run.
	Transcript *model.Transcript

	// Emitter receives the node's events. Prefer the Emit helper.
	Emitter emit.Emitter

	// Metrics and Costs may be nil; both are nil-safe.
	Metrics *PrometheusMetrics
	Costs   *CostTracker

	Logger *slog.Logger
}

// Emit sends event after stamping it with the run ID, step and node ID.
func (rc *RunContext[S]) Emit(event emit.Event) {
	if rc.Emitter == nil {
		return
	}
	event.RunID = rc.RunID
	event.Step = rc.Step
	if event.NodeID == "" {
		event.NodeID = rc.NodeID
	}
	rc.Emitter.Emit(event)
}

// Log returns the run logger, never nil.
func (rc *RunContext[S]) Log() *slog.Logger {
	if rc.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return rc.Logger
}
