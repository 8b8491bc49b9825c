package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/systmms/keyshift/internal/logging"
	"github.com/systmms/keyshift/internal/metrics"
)

// Per-session states observed by the request-path migration step.
// LegacyOrUnauthenticated sessions are the only ones acted upon; the
// transition to Migrated happens by regenerating the session.
const (
	StateUnknown                 = "unknown"
	StateLegacyOrUnauthenticated = "legacy-or-unauthenticated"
	StateMigrated                = "migrated"
)

// Migrator runs the request-time migration check against a session store.
type Migrator struct {
	store   Store
	mctx    Context
	ttl     time.Duration
	logger  *logging.Logger
	metrics *metrics.MigrationMetrics
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// WithSessionTTL sets the TTL applied when the generic regeneration path
// re-issues a session. Stores implementing Regenerator manage TTL natively.
func WithSessionTTL(ttl time.Duration) MigratorOption {
	return func(m *Migrator) {
		m.ttl = ttl
	}
}

// WithMigratorLogger sets the logger.
func WithMigratorLogger(l *logging.Logger) MigratorOption {
	return func(m *Migrator) {
		m.logger = l
	}
}

// NewMigrator creates a Migrator over the given store and context.
func NewMigrator(store Store, mctx Context, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		store:   store,
		mctx:    mctx,
		ttl:     24 * time.Hour,
		logger:  logging.New(false, true),
		metrics: metrics.NewMigrationMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classify reports the migration state of a session record.
func Classify(rec Record, found bool) string {
	switch {
	case !found:
		return StateUnknown
	case IsMigrated(rec):
		return StateMigrated
	default:
		return StateLegacyOrUnauthenticated
	}
}

// Step runs the request-path migration check for the session identified by
// id and returns the id the request should continue with.
//
// The session is regenerated only when it exists, lacks an authenticated
// principal, a previous secret is configured AND the active secret passes
// strength validation. In every other case, including any error along the
// way, the step is a passthrough and returns the original id. Errors are
// logged and counted, never surfaced: the request proceeds unauthenticated
// or with its existing state, and the auth layer downstream decides.
func (m *Migrator) Step(ctx context.Context, id string) string {
	if id == "" {
		m.metrics.RecordSkipped("no_session")
		return id
	}

	if !m.mctx.Eligible() {
		m.metrics.RecordSkipped("not_eligible")
		return id
	}

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.Debug("Migration check could not load session %s: %v", id, err)
		}
		m.metrics.RecordSkipped("no_session")
		return id
	}

	if IsMigrated(rec) {
		m.metrics.RecordSkipped("already_migrated")
		return id
	}

	newID, err := m.regenerate(ctx, id, rec)
	if err != nil {
		m.logger.Warn("Session migration skipped for %s: %v", id, err)
		m.metrics.RecordSkipped("error")
		return id
	}

	m.metrics.RecordMigrated()
	m.logger.Debug("Regenerated session %s -> %s", id, newID)
	return newID
}

// regenerate re-issues the session under a fresh identifier. Stores that
// implement Regenerator decide themselves which keys carry over; the generic
// path copies the record verbatim.
func (m *Migrator) regenerate(ctx context.Context, id string, rec Record) (string, error) {
	if r, ok := m.store.(Regenerator); ok {
		return r.Regenerate(ctx, id)
	}

	newID := uuid.NewString()
	if err := m.store.Set(ctx, newID, rec, m.ttl); err != nil {
		return "", err
	}
	if err := m.store.Destroy(ctx, id); err != nil {
		// The new session exists; a stale copy under the old id is
		// harmless and expires on its own.
		m.logger.Debug("Failed to destroy pre-migration session %s: %v", id, err)
	}
	return newID, nil
}
