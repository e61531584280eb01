package graph

import (
	"context"
	"fmt"

	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/state"
)

// Result is the outcome of a finished run.
type Result[S any] struct {
	RunID string

	// Output is the final agent's last reply.
	Output string

	// State is a snapshot of the shared state when the run ended. It is the
	// zero value when the state could not be copied.
	State S
}

// Handler is a run in progress. The engine executes on its own goroutine and
// streams events to Events; the caller consumes them and then calls Wait.
//
// Example:
//
//	h := graph.Start(ctx, engine, runID, initial, "Write a PRD for ...")
//	for ev := range h.Events() {
//	    render(ev)
//	}
//	res, err := h.Wait()
type Handler[S any] struct {
	runID  string
	stream *emit.Stream
	state  *state.Shared[S]
	done   chan struct{}

	result Result[S]
	err    error
}

// Start launches a run of engine seeded with initial state and a transcript
// holding userMsg.
//
// Events are delivered through an unbuffered channel, so the run advances
// only as fast as the consumer reads. The channel closes when the run ends.
func Start[S any](ctx context.Context, engine *Engine[S], runID string, initial S, userMsg string) *Handler[S] {
	h := &Handler[S]{
		runID:  runID,
		stream: emit.NewStream(0),
		state:  state.New(initial),
		done:   make(chan struct{}),
	}

	transcript := model.NewTranscript(model.Message{Role: model.RoleUser, Content: userMsg})
	emitter := emit.Multi(engine.emitter, h.stream)

	go func() {
		defer close(h.done)
		defer h.stream.Close()

		out, err := engine.run(ctx, runID, h.state, transcript, emitter)
		final, _, serr := h.state.Get()
		if serr != nil && err == nil {
			err = fmt.Errorf("snapshot final state: %w", serr)
		}
		h.result = Result[S]{
			RunID:  runID,
			Output: out,
			State:  final,
		}
		h.err = err
	}()

	return h
}

// RunID returns the run identifier.
func (h *Handler[S]) RunID() string {
	return h.runID
}

// Events returns the live, ordered event stream of the run. It is closed when
// the run ends and cannot be restarted.
func (h *Handler[S]) Events() <-chan emit.Event {
	return h.stream.Events()
}

// State returns the run's shared state store. Reading it while the run is in
// progress is safe.
func (h *Handler[S]) State() *state.Shared[S] {
	return h.state
}

// Done is closed when the run has finished.
func (h *Handler[S]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes and returns its result. Events the
// caller has not read yet are discarded so the run can complete.
func (h *Handler[S]) Wait() (Result[S], error) {
	h.stream.Abandon()
	<-h.done
	return h.result, h.err
}
