package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory, grouped
// by run.
//
// Useful for tests and post-run inspection. It keeps every event, so it is
// not meant for unbounded production use.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	// ... run workflow ...
//	calls := emitter.GetHistoryWithFilter("run-001", emit.HistoryFilter{Kind: emit.KindToolCall})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// HistoryFilter specifies criteria for filtering execution history.
//
// All fields are optional and combined with AND logic.
type HistoryFilter struct {
	NodeID  string // Filter by agent (empty = no filter)
	Kind    Kind   // Filter by event kind (empty = no filter)
	MinStep *int   // Minimum step number (nil = no filter)
	MaxStep *int   // Maximum step number (nil = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// GetHistory returns a copy of all events for runID in emission order.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	return b.GetHistoryWithFilter(runID, HistoryFilter{})
}

// GetHistoryWithFilter returns a copy of the events for runID that match
// filter, in emission order. Never returns nil.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Kind != "" && event.Kind != f.Kind {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// Clear removes stored events for runID, or all events if runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
	} else {
		delete(b.events, runID)
	}
}
