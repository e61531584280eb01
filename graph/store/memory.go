package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. It is the default backend: run snapshots
// live as long as the process.
//
// Safe for concurrent use.
//
// Example:
//
//	st := store.NewMemStore[ReportState]()
//	_ = st.SaveStep(ctx, "run-001", 1, "ResearchAgent", state)
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string]map[int]StepRecord[S] // runID -> step -> record
	checkpoints map[string]Checkpoint[S]
	closed      bool
}

// NewMemStore creates an empty MemStore.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string]map[int]StepRecord[S]),
		checkpoints: make(map[string]Checkpoint[S]),
	}
}

// SaveStep implements Store.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, nodeID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.steps[runID] == nil {
		m.steps[runID] = make(map[int]StepRecord[S])
	}
	m.steps[runID][step] = StepRecord[S]{Step: step, NodeID: nodeID, State: state}
	return nil
}

// LoadLatest implements Store.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return state, 0, ErrClosed
	}

	records := m.steps[runID]
	if len(records) == 0 {
		return state, 0, ErrNotFound
	}

	latest := -1
	for s := range records {
		if s > latest {
			latest = s
		}
	}
	return records[latest].State, latest, nil
}

// History implements Store.
func (m *MemStore[S]) History(_ context.Context, runID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	out := make([]StepRecord[S], 0, len(m.steps[runID]))
	for _, r := range m.steps[runID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// SaveCheckpoint implements Store.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.checkpoints[cpID] = Checkpoint[S]{ID: cpID, State: state, Step: step}
	return nil
}

// LoadCheckpoint implements Store.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return state, 0, ErrClosed
	}
	cp, ok := m.checkpoints[cpID]
	if !ok {
		return state, 0, ErrNotFound
	}
	return cp.State, cp.Step, nil
}

// Close implements Store.
func (m *MemStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
