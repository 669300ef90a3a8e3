// Package tasklog is the append-only audit trail for detached task runs.
// It is write-only from this subsystem's perspective; reading is left to
// whatever the operator points at the table.
package tasklog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Entry statuses written by the task runner
const (
	StatusToolCall   = "tool_call"
	StatusToolResult = "tool_result"
	StatusCompleted  = "completed"
)

const taskLogsSchema = `
CREATE TABLE IF NOT EXISTS task_logs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    task_name VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    status VARCHAR(50) NOT NULL
)`

// Store writes task execution events
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store over the given pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append writes one log entry. Each call acquires its own connection,
// ensures the table exists, and inserts inside a single transaction; the
// connection is released on every exit path. Entries are never updated or
// deleted.
func (s *Store) Append(ctx context.Context, taskName, message, status string) error {
	if status == "" {
		status = StatusCompleted
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Safe to run on every write
	if _, err := tx.Exec(ctx, taskLogsSchema); err != nil {
		return fmt.Errorf("failed to ensure task_logs table: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO task_logs (task_name, message, timestamp, status)
		VALUES ($1, $2, $3, $4)
	`, taskName, message, time.Now().UTC(), status)
	if err != nil {
		return fmt.Errorf("failed to insert task log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit task log: %w", err)
	}

	log.Debug().
		Str("task_name", taskName).
		Str("status", status).
		Msg("Task log entry written")

	return nil
}
