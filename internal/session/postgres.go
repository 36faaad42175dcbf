package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS scanner_sessions (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps sessions in Postgres so they survive restarts and are
// shared between instances.
type PGStore struct {
	db  *pgxpool.Pool
	ttl time.Duration
}

func NewPGStore(db *pgxpool.Pool, ttl time.Duration) *PGStore {
	return &PGStore{db: db, ttl: ttl}
}

// Connect opens a pool for dsn and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create session db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping session db: %w", err)
	}
	return pool, nil
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Data, error) {
	const query = `
	SELECT data
	FROM scanner_sessions
	WHERE id = $1 AND updated_at > $2
	`
	var raw []byte
	err := s.db.QueryRow(ctx, query, id, s.cutoff()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &data, nil
}

func (s *PGStore) Save(ctx context.Context, data *Data) error {
	if data == nil || data.ID == "" {
		return errors.New("session id is required")
	}
	data.UpdatedAt = time.Now()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	const query = `
	INSERT INTO scanner_sessions (id, data, created_at, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Exec(ctx, query, data.ID, raw, data.CreatedAt, data.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scanner_sessions WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes sessions not saved within the ttl.
func (s *PGStore) CleanupExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM scanner_sessions WHERE updated_at <= $1`
	result, err := s.db.Exec(ctx, query, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *PGStore) cutoff() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-s.ttl)
}
