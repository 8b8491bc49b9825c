// Package stores provides session store implementations satisfying the
// migrate.Store contract: an in-memory map for tests and single-process
// hosts, a Redis store, and a Postgres store. All of them report absent
// sessions as migrate.ErrSessionNotFound so the migration wrapper can treat
// not-found uniformly.
package stores

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/systmms/keyshift/pkg/migrate"
)

type memoryEntry struct {
	record    migrate.Record
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-memory session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

// Get returns the session record for id, or migrate.ErrSessionNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (migrate.Record, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return nil, migrate.ErrSessionNotFound
	}

	// Copy so callers cannot mutate stored state through the returned map.
	rec := make(migrate.Record, len(entry.record))
	for k, v := range entry.record {
		rec[k] = v
	}
	return rec, nil
}

// Set stores the record under id. A zero ttl means no expiry.
func (s *MemoryStore) Set(ctx context.Context, id string, rec migrate.Record, ttl time.Duration) error {
	entry := memoryEntry{record: make(migrate.Record, len(rec))}
	for k, v := range rec {
		entry.record[k] = v
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()
	return nil
}

// Destroy removes the session. Destroying an absent session is not an error.
func (s *MemoryStore) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Touch extends the session's expiry.
func (s *MemoryStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return migrate.ErrSessionNotFound
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	s.sessions[id] = entry
	return nil
}

// Regenerate re-issues the session under a fresh identifier, carrying over
// the full record and remaining expiry.
func (s *MemoryStore) Regenerate(ctx context.Context, oldID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[oldID]
	if !ok {
		return "", migrate.ErrSessionNotFound
	}
	newID := uuid.NewString()
	s.sessions[newID] = entry
	delete(s.sessions, oldID)
	return newID, nil
}
