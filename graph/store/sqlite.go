package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite implementation of Store.
//
// Suited to local runs that should survive a restart. WAL mode lets the
// renderer or an operator read history while a run is writing.
//
// Schema:
//   - agentcrew_steps: one row per (run_id, step)
//   - agentcrew_checkpoints: named snapshots
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema. Use ":memory:" for a throwaway database.
//
// Example:
//
//	st, err := store.NewSQLiteStore[report.State]("./runs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agentcrew_steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step)
		)`,
		`CREATE TABLE IF NOT EXISTS agentcrew_checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			step INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database location.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}

// SaveStep implements Store.
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agentcrew_steps (run_id, step, node_id, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			node_id = excluded.node_id,
			state = excluded.state
	`, runID, step, nodeID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return state, 0, ErrClosed
	}

	var data string
	err = s.db.QueryRowContext(ctx, `
		SELECT step, state FROM agentcrew_steps
		WHERE run_id = ?
		ORDER BY step DESC
		LIMIT 1
	`, runID).Scan(&step, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// History implements Store.
func (s *SQLiteStore[S]) History(ctx context.Context, runID string) ([]StepRecord[S], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, node_id, state FROM agentcrew_steps
		WHERE run_id = ?
		ORDER BY step ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanStepRows[S](rows)
}

// SaveCheckpoint implements Store.
func (s *SQLiteStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agentcrew_checkpoints (checkpoint_id, state, step)
		VALUES (?, ?, ?)
		ON CONFLICT(checkpoint_id) DO UPDATE SET
			state = excluded.state,
			step = excluded.step,
			updated_at = CURRENT_TIMESTAMP
	`, cpID, string(data), step)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *SQLiteStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return state, 0, ErrClosed
	}

	var data string
	err = s.db.QueryRowContext(ctx, `
		SELECT state, step FROM agentcrew_checkpoints WHERE checkpoint_id = ?
	`, cpID).Scan(&data, &step)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// Close implements Store.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanStepRows decodes (step, node_id, state) rows. Shared by the SQL
// backends.
func scanStepRows[S any](rows *sql.Rows) ([]StepRecord[S], error) {
	out := []StepRecord[S]{}
	for rows.Next() {
		var (
			rec  StepRecord[S]
			data string
		)
		if err := rows.Scan(&rec.Step, &rec.NodeID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate steps: %w", err)
	}
	return out, nil
}
