// Package migrate makes session secret rotation invisible to authenticated
// users. It wraps an arbitrary session store so lookups can fall back to
// migration logic, and runs a request-path step that regenerates sessions
// still carrying pre-rotation state.
//
// Everything on the request path is fail-open: migration must never become a
// second point of failure for authentication. The worst case this package
// permits is a forced re-login, never a corrupted or spoofed session.
package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/keyshift/internal/logging"
	"github.com/systmms/keyshift/internal/metrics"
	"github.com/systmms/keyshift/pkg/secret"
)

// ErrSessionNotFound is returned by stores when no record exists for a
// session id. Callers establish a fresh session in response.
var ErrSessionNotFound = errors.New("session not found")

// PrincipalKey is the session record field whose presence marks a session as
// migrated (issued, or re-issued, under the active secret).
const PrincipalKey = "authenticatedPrincipal"

// Record is an opaque session payload owned by the underlying store. This
// package inspects only PrincipalKey and otherwise carries records verbatim.
type Record map[string]interface{}

// IsMigrated reports whether the record carries an authenticated principal.
// The field is accepted at the top level or one level down inside a
// framework-owned sub-object, which is where auth middlewares keep it.
func IsMigrated(rec Record) bool {
	if v, ok := rec[PrincipalKey]; ok && v != nil {
		return true
	}
	for _, v := range rec {
		if sub, ok := v.(map[string]interface{}); ok {
			if pv, ok := sub[PrincipalKey]; ok && pv != nil {
				return true
			}
		}
	}
	return false
}

// Store mirrors the asynchronous key-value contract of session storage
// backends. Implementations must be safe for concurrent use and must return
// ErrSessionNotFound (possibly wrapped) for absent sessions.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Set(ctx context.Context, id string, rec Record, ttl time.Duration) error
	Destroy(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, ttl time.Duration) error
}

// Regenerator is implemented by stores that can re-issue a session under a
// fresh identifier natively, preserving whichever keys they choose. Stores
// without it get the generic get/copy/destroy path.
type Regenerator interface {
	Regenerate(ctx context.Context, oldID string) (newID string, err error)
}

// Context pairs the active secret with the optional previous secret for one
// process lifetime. It is built once per MigrationStore construction and
// never mutated; secret rotation is not live-reloaded mid-process.
type Context struct {
	active   secret.Secret
	previous *secret.Secret
}

// NewContext builds a migration context. A previous secret equal to the
// active one is dropped: migrating a session onto the secret it already uses
// is a no-op and is skipped at construction time.
func NewContext(active secret.Secret, previous *secret.Secret) Context {
	if previous != nil && previous.Value == active.Value {
		previous = nil
	}
	var prevCopy *secret.Secret
	if previous != nil {
		p := *previous
		prevCopy = &p
	}
	return Context{active: active, previous: prevCopy}
}

// Active returns the active secret.
func (c Context) Active() secret.Secret {
	return c.active
}

// Previous returns the previous secret, if one is configured.
func (c Context) Previous() (secret.Secret, bool) {
	if c.previous == nil {
		return secret.Secret{}, false
	}
	return *c.previous, true
}

// Eligible reports whether migration may act at all: a previous secret is
// configured and the active secret passes strength validation. When false,
// every migration path is a passthrough.
func (c Context) Eligible() bool {
	return c.previous != nil && c.active.IsSecure()
}

// MigrationStore wraps a session store, adding migration fallback to Get and
// forwarding everything else untouched.
type MigrationStore struct {
	wrapped Store
	mctx    Context
	codec   *Codec
	logger  *logging.Logger
	metrics *metrics.MigrationMetrics
}

// StoreOption configures a MigrationStore.
type StoreOption func(*MigrationStore)

// WithCodec enables true dual-secret cookie verification on the lookup path.
// Without it, the migration fallback conservatively resolves to not-found.
func WithCodec(c *Codec) StoreOption {
	return func(s *MigrationStore) {
		s.codec = c
	}
}

// WithLogger sets the logger. Defaults to a quiet logger.
func WithLogger(l *logging.Logger) StoreOption {
	return func(s *MigrationStore) {
		s.logger = l
	}
}

// NewMigrationStore wraps a session store with migration behavior for the
// given context.
func NewMigrationStore(wrapped Store, mctx Context, opts ...StoreOption) *MigrationStore {
	s := &MigrationStore{
		wrapped: wrapped,
		mctx:    mctx,
		logger:  logging.New(false, true),
		metrics: metrics.NewMigrationMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context returns the migration context this store was built with.
func (s *MigrationStore) Context() Context {
	return s.mctx
}

// Get delegates to the wrapped store. On not-found with a previous secret
// configured, a migration lookup is attempted. A store-level wrapper cannot
// re-verify cookie signatures on its own (that capability lives in the
// signing layer, reached through VerifySignedCookie), so the fallback here
// deliberately collapses to ErrSessionNotFound: the caller establishes a
// fresh session rather than trusting fabricated data.
func (s *MigrationStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.wrapped.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	if _, hasPrevious := s.mctx.Previous(); !hasPrevious {
		return nil, err
	}

	s.logger.Debug("Session %s not found; migration fallback resolves to not-found", id)
	s.metrics.RecordFallback()
	return nil, ErrSessionNotFound
}

// Set forwards to the wrapped store.
func (s *MigrationStore) Set(ctx context.Context, id string, rec Record, ttl time.Duration) error {
	return s.wrapped.Set(ctx, id, rec, ttl)
}

// Destroy forwards to the wrapped store.
func (s *MigrationStore) Destroy(ctx context.Context, id string) error {
	return s.wrapped.Destroy(ctx, id)
}

// Touch forwards to the wrapped store.
func (s *MigrationStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	return s.wrapped.Touch(ctx, id, ttl)
}

// VerifySignedCookie is the strengthened lookup path, available when a Codec
// is configured. The signed cookie value is verified against the active
// secret first, then the previous one. On a previous-secret match the
// session id is re-signed with the active secret and the fresh cookie value
// is returned for the host to set on the response.
//
// The returned resigned string is empty when the cookie already carries an
// active-secret signature.
func (s *MigrationStore) VerifySignedCookie(ctx context.Context, cookie string) (id string, rec Record, resigned string, err error) {
	if s.codec == nil {
		return "", nil, "", ErrSessionNotFound
	}

	id, usedPrevious, ok := s.codec.VerifyID(cookie)
	if !ok {
		return "", nil, "", ErrSessionNotFound
	}

	rec, err = s.wrapped.Get(ctx, id)
	if err != nil {
		return "", nil, "", err
	}

	if usedPrevious {
		resigned, err = s.codec.SignID(id)
		if err != nil {
			// Re-signing failed; the session itself is still valid under
			// the previous secret, so serve it and let the next request
			// retry.
			s.logger.Warn("Failed to re-sign migrated session cookie: %v", err)
			return id, rec, "", nil
		}
		s.metrics.RecordMigrated()
		s.logger.Debug("Re-signed session %s from previous secret to active", id)
	}
	return id, rec, resigned, nil
}
