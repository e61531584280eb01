// Package state provides the shared, versioned state store that every agent
// and tool of a workflow run reads from and writes to.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrCanceled is returned by Edit when the context is done before the edit
// could be committed.
var ErrCanceled = errors.New("state edit canceled")

// Shared holds the state of type S for one workflow run.
//
// All mutation goes through Edit, which is the single write gateway:
//   - Edits are exclusive: only one edit runs at a time
//   - Edits are copy-on-write: the callback works on a private deep copy
//   - Edits are all-or-nothing: the copy is committed only if the callback
//     returns nil, otherwise nothing changes
//
// Readers always see a fully committed value. Get and Snapshot return deep
// copies, so callers may mutate what they receive without affecting the store.
//
// S must round-trip through encoding/json. Unexported fields are not copied.
//
// Example:
//
//	st := state.New(ReportState{Review: "Review required."})
//	err := st.Edit(ctx, func(s *ReportState) error {
//	    s.ReportContent = "# PRD"
//	    return nil
//	})
type Shared[S any] struct {
	mu      sync.RWMutex
	value   S
	version uint64
}

// New creates a store holding initial at version 0.
func New[S any](initial S) *Shared[S] {
	return &Shared[S]{value: initial}
}

// Get returns a deep copy of the current value and the version it was read at.
func (s *Shared[S]) Get() (S, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := deepCopy(s.value)
	if err != nil {
		var zero S
		return zero, 0, err
	}
	return v, s.version, nil
}

// Snapshot returns a deep copy of the current value.
//
// If the value cannot be copied the zero value of S is returned; use Get to
// observe the error.
func (s *Shared[S]) Snapshot() S {
	v, _, _ := s.Get()
	return v
}

// Version returns the number of committed edits.
func (s *Shared[S]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Edit applies fn to a private copy of the state and commits it atomically.
//
// If fn returns an error, or ctx is done before the commit, the copy is
// discarded and the stored value is left untouched. Errors from fn are
// returned wrapped in an *EditError.
func (s *Shared[S]) Edit(ctx context.Context, fn func(*S) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working, err := deepCopy(s.value)
	if err != nil {
		return err
	}

	if err := fn(&working); err != nil {
		return &EditError{Version: s.version, Cause: err}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	s.value = working
	s.version++
	return nil
}

// EditError reports an edit callback failure. The state is unchanged.
type EditError struct {
	// Version is the state version the failed edit was based on.
	Version uint64

	// Cause is the error returned by the edit callback.
	Cause error
}

// Error implements the error interface.
func (e *EditError) Error() string {
	return fmt.Sprintf("state edit at version %d: %v", e.Version, e.Cause)
}

// Unwrap returns the callback error.
func (e *EditError) Unwrap() error {
	return e.Cause
}

// deepCopy creates a deep copy of state S using JSON round-trip serialization.
//
// Limitations:
//   - Unexported struct fields are not copied
//   - Channels, functions, and complex types that don't marshal to JSON will fail
//   - Circular references will cause infinite loops
func deepCopy[S any](state S) (S, error) {
	var zero S

	data, err := json.Marshal(state)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}
