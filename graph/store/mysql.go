package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/Aurora implementation of Store for deployments where
// several processes share run history.
//
// DSN format (github.com/go-sql-driver/mysql):
//
//	user:password@tcp(host:3306)/dbname?parseTime=true
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore connects, verifies the connection and migrates the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore[S]) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agentcrew_steps (
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS agentcrew_checkpoints (
			checkpoint_id VARCHAR(255) PRIMARY KEY,
			state JSON NOT NULL,
			step INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *MySQLStore[S]) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// SaveStep implements Store.
func (s *MySQLStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
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
		ON DUPLICATE KEY UPDATE
			node_id = VALUES(node_id),
			state = VALUES(state)
	`, runID, step, nodeID, data)
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *MySQLStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return state, 0, ErrClosed
	}

	var data []byte
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

	if err := json.Unmarshal(data, &state); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// History implements Store.
func (s *MySQLStore[S]) History(ctx context.Context, runID string) ([]StepRecord[S], error) {
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
func (s *MySQLStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
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
		ON DUPLICATE KEY UPDATE
			state = VALUES(state),
			step = VALUES(step)
	`, cpID, data, step)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *MySQLStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return state, 0, ErrClosed
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT state, step FROM agentcrew_checkpoints WHERE checkpoint_id = ?
	`, cpID).Scan(&data, &step)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// Close implements Store.
func (s *MySQLStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
