package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/systmms/keyshift/pkg/migrate"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	sid        TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists sessions in a Postgres table, the layout used by
// connect-pg-simple style session backends: one row per session with a
// JSONB record and an expiry timestamp.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a connection with the pq driver and returns a store
// over it. The caller owns the handle's lifecycle via Close.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Close releases the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// Get returns the unexpired session record for id, or
// migrate.ErrSessionNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (migrate.Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM sessions WHERE sid = $1 AND expires_at > NOW()`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, migrate.ErrSessionNotFound
		}
		return nil, fmt.Errorf("postgres select failed: %w", err)
	}

	var rec migrate.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt session record for %s: %w", id, err)
	}
	return rec, nil
}

// Set upserts the record under id with the given TTL.
func (s *PostgresStore) Set(ctx context.Context, id string, rec migrate.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	expiresAt := time.Now().Add(ttl)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (sid, record, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (sid) DO UPDATE SET record = EXCLUDED.record, expires_at = EXCLUDED.expires_at`,
		id, data, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres upsert failed: %w", err)
	}
	return nil
}

// Destroy removes the session. Destroying an absent session is not an error.
func (s *PostgresStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, id); err != nil {
		return fmt.Errorf("postgres delete failed: %w", err)
	}
	return nil
}

// Touch extends the session's expiry.
func (s *PostgresStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE sid = $1`, id, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("postgres update failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres update failed: %w", err)
	}
	if affected == 0 {
		return migrate.ErrSessionNotFound
	}
	return nil
}

// Regenerate re-issues the session under a fresh identifier in a single
// transaction, preserving record and expiry.
func (s *PostgresStore) Regenerate(ctx context.Context, oldID string) (string, error) {
	newID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("postgres begin failed: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET sid = $2 WHERE sid = $1 AND expires_at > NOW()`, oldID, newID)
	if err != nil {
		return "", fmt.Errorf("postgres rename failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("postgres rename failed: %w", err)
	}
	if affected == 0 {
		return "", migrate.ErrSessionNotFound
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("postgres commit failed: %w", err)
	}
	return newID, nil
}
