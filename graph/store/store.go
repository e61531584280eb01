// Package store provides persistence for workflow run snapshots.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested run or checkpoint does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store persists snapshots of the shared state of workflow runs.
//
// The engine calls SaveStep after every agent turn, so the latest snapshot of
// a run always reflects the last completed turn. Checkpoints are named
// snapshots an application can save and restore explicitly.
//
// Type parameter S is the state type; it must round-trip through JSON for
// the SQL backends.
type Store[S any] interface {
	// SaveStep records the state after step of runID, produced by agent
	// nodeID. Saving the same (runID, step) again overwrites it.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest returns the highest-step snapshot of runID, or ErrNotFound.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// History returns every snapshot of runID ordered by step.
	History(ctx context.Context, runID string) ([]StepRecord[S], error)

	// SaveCheckpoint stores a named snapshot, overwriting any previous one.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint returns a named snapshot, or ErrNotFound.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// StepRecord is one persisted snapshot.
type StepRecord[S any] struct {
	// Step is the agent turn number (1-indexed).
	Step int `json:"step"`

	// NodeID is the agent that ran the turn.
	NodeID string `json:"node_id"`

	// State is the shared state after the turn.
	State S `json:"state"`
}

// Checkpoint is a named snapshot.
type Checkpoint[S any] struct {
	ID    string `json:"id"`
	State S      `json:"state"`
	Step  int    `json:"step"`
}

// Open creates a store by driver name:
//   - "memory" (or ""): in-process MemStore, dsn ignored
//   - "sqlite": SQLiteStore at file path dsn (":memory:" allowed)
//   - "mysql": MySQLStore with a go-sql-driver DSN
func Open[S any](driver, dsn string) (Store[S], error) {
	switch driver {
	case "", "memory":
		return NewMemStore[S](), nil
	case "sqlite":
		return NewSQLiteStore[S](dsn)
	case "mysql":
		return NewMySQLStore[S](dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
