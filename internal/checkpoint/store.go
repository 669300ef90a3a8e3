// Package checkpoint persists per-thread conversation state in Postgres.
// State is acquired for the duration of one request and released afterward;
// two threads never block each other, but concurrent turns on the same
// thread must be serialized upstream.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const checkpointsSchema = `
CREATE TABLE IF NOT EXISTS agent_checkpoints (
    thread_id TEXT PRIMARY KEY,
    state JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store hands out request-scoped sessions against the checkpoint table
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the store and ensures the checkpoint table exists
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, checkpointsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure agent_checkpoints table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Session is a request-scoped handle on the checkpoint store. Close must be
// called on every exit path before the request returns.
type Session struct {
	conn *pgxpool.Conn
}

// Acquire takes a pooled connection for the duration of one request
func (s *Store) Acquire(ctx context.Context) (*Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkpoint connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Close releases the session's connection back to the pool
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}

// Load returns the saved state for a thread, or (nil, nil) for a new thread
func (s *Session) Load(ctx context.Context, threadID string, state any) (bool, error) {
	var raw []byte
	err := s.conn.QueryRow(ctx,
		`SELECT state FROM agent_checkpoints WHERE thread_id = $1`, threadID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load checkpoint for thread %s: %w", threadID, err)
	}

	if err := json.Unmarshal(raw, state); err != nil {
		return false, fmt.Errorf("failed to decode checkpoint for thread %s: %w", threadID, err)
	}

	log.Debug().Str("thread_id", threadID).Msg("Checkpoint loaded")
	return true, nil
}

// Save upserts the state for a thread. The full history travels with the
// state value, so the row is replaced rather than appended.
func (s *Session) Save(ctx context.Context, threadID string, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint for thread %s: %w", threadID, err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO agent_checkpoints (thread_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (thread_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = now()
	`, threadID, raw)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for thread %s: %w", threadID, err)
	}

	log.Debug().Str("thread_id", threadID).Msg("Checkpoint saved")
	return nil
}
