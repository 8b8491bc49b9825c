// Package resolve implements active-secret resolution across the ordered
// backends: explicit environment variable, remote secret manager, filesystem.
// First match wins. Resolution happens once per process and is cached;
// request-path code must only ever read the cached result.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/systmms/keyshift/internal/backends"
	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/internal/logging"
	"github.com/systmms/keyshift/pkg/secret"
)

// Options configures a Resolver.
type Options struct {
	// Logger receives resolution progress. Required.
	Logger *logging.Logger

	// EnvVar overrides the explicit-secret environment variable.
	// Empty means backends.EnvVarSecret.
	EnvVar string

	// BaseDir overrides the file backend's base directory.
	// Empty means backends.DefaultBaseDir().
	BaseDir string

	// Remote, when non-nil, requests the remote secret manager. A nil Remote
	// means "never configured" and resolution falls through to file storage.
	Remote *backends.RemoteConfig

	// RemoteOpts are passed through to the remote backend constructor
	// (client injection in tests).
	RemoteOpts []backends.RemoteOption
}

// Resolver resolves and caches the active session secret, and manages the
// optional previous secret used for migration.
type Resolver struct {
	logger *logging.Logger
	env    *backends.EnvBackend
	file   *backends.FileBackend

	remote *backends.RemoteBackend
	// remoteErr records a remote manager that was requested but whose client
	// could not be constructed. Resolution must fail in that state rather
	// than silently fall through to file storage.
	remoteErr error

	mu     sync.Mutex
	active *secret.Secret
}

// New creates a Resolver. Remote client construction happens here, once;
// the optional dependency is never re-probed per call.
func New(opts Options) *Resolver {
	r := &Resolver{
		logger: opts.Logger,
		env:    backends.NewEnvBackend(opts.EnvVar),
		file:   backends.NewFileBackend(opts.BaseDir),
	}

	if opts.Remote != nil {
		remote, err := backends.NewRemoteBackend(*opts.Remote, opts.RemoteOpts...)
		if err != nil {
			r.remoteErr = err
		} else {
			r.remote = remote
		}
	}

	return r
}

// FileBackend exposes the resolver's file backend for operator tooling.
func (r *Resolver) FileBackend() *backends.FileBackend {
	return r.file
}

// Active resolves the active secret, caching the result for the process
// lifetime. Exactly one secret is treated as active per process.
func (r *Resolver) Active(ctx context.Context) (secret.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return *r.active, nil
	}

	s, err := r.resolve(ctx)
	if err != nil {
		return secret.Secret{}, err
	}
	r.active = &s
	return s, nil
}

func (r *Resolver) resolve(ctx context.Context) (secret.Secret, error) {
	// 1. Explicit environment secret wins outright; no other backend is
	//    consulted and no strength validation happens here.
	if s, err := r.env.Lookup(); err == nil {
		r.logger.Debug("Resolved session secret from %s", r.env.Var)
		return s, nil
	} else if !errors.Is(err, backends.ErrSecretNotFound) {
		return secret.Secret{}, err
	}

	// 2. Remote manager, iff configured. A requested-but-unusable remote is
	//    a configuration error, not a reason to fall through.
	if r.remoteErr != nil {
		return secret.Secret{}, kserrors.ConfigurationError{
			Message:    fmt.Sprintf("remote secret manager was requested but its client could not be constructed: %v", r.remoteErr),
			Suggestion: fmt.Sprintf("Set %s explicitly, or fix the remote manager configuration", backends.EnvVarSecret),
		}
	}
	if r.remote != nil {
		s, err := r.remote.Lookup(ctx)
		if err == nil {
			r.logger.Debug("Resolved session secret from remote manager entry '%s'", r.remote.SecretName())
			return s, nil
		}
		if !errors.Is(err, backends.ErrSecretNotFound) {
			// Configured-but-broken remote: hard error, no fallback.
			return secret.Secret{}, err
		}

		generated, genErr := secret.Generate()
		if genErr != nil {
			return secret.Secret{}, genErr
		}
		if createErr := r.remote.Create(ctx, generated); createErr != nil {
			return secret.Secret{}, createErr
		}
		r.logger.Info("Created session secret in remote manager entry '%s'", r.remote.SecretName())
		return generated, nil
	}

	// 3. File storage, only when remote was never configured.
	s, err := r.file.Lookup()
	if err == nil {
		r.logger.Debug("Resolved session secret from %s", r.file.Path())
		return s, nil
	}
	if !errors.Is(err, backends.ErrSecretNotFound) {
		return secret.Secret{}, err
	}

	generated, genErr := secret.Generate()
	if genErr != nil {
		return secret.Secret{}, genErr
	}
	provisioned, provErr := r.file.Provision(generated)
	if provErr != nil {
		return secret.Secret{}, provErr
	}
	r.logger.Info("Provisioned new session secret at %s", r.file.Path())
	return provisioned, nil
}

// EnsureStartup resolves the active secret and applies strength validation.
// Any error is fatal: the hosting process must stop before it accepts
// connections rather than run with an absent or insecure secret.
func (r *Resolver) EnsureStartup(ctx context.Context) (secret.Secret, error) {
	s, err := r.Active(ctx)
	if err != nil {
		return secret.Secret{}, err
	}
	if !s.IsSecure() {
		return secret.Secret{}, kserrors.InsecureSecretError{
			Origin: string(s.Origin),
			Length: len(s.Value),
		}
	}
	return s, nil
}

// Previous reads the retired secret from the file backend's sibling
// location. Absence (and any read failure) is a normal state.
func (r *Resolver) Previous(ctx context.Context) (secret.Secret, bool) {
	s, err := r.file.LookupPrevious()
	if err != nil {
		return secret.Secret{}, false
	}
	return s, true
}

// StorePrevious persists a retired secret to the sibling location,
// overwriting any existing value. Operator-triggered, once per rotation.
func (r *Resolver) StorePrevious(ctx context.Context, s secret.Secret) error {
	return r.file.StorePrevious(s)
}

// SnapshotPrevious stores the current active secret as the previous secret
// without replacing the active value. Used ahead of a rotation that happens
// at the source (environment or remote manager), so sessions signed with the
// outgoing secret can still migrate.
func (r *Resolver) SnapshotPrevious(ctx context.Context) (secret.Secret, error) {
	current, err := r.Active(ctx)
	if err != nil {
		return secret.Secret{}, err
	}
	if err := r.file.StorePrevious(current); err != nil {
		return secret.Secret{}, err
	}
	r.logger.Info("Stored current secret as previous at %s", r.file.PreviousPath())
	return current, nil
}

// Rotate performs an operator rotation for file-backed secrets: the current
// active value is stored as previous and a freshly generated secret replaces
// it. Environment- and remote-origin secrets are refused; those sources are
// rotated where they live.
func (r *Resolver) Rotate(ctx context.Context) (secret.Secret, error) {
	current, err := r.Active(ctx)
	if err != nil {
		return secret.Secret{}, err
	}

	switch current.Origin {
	case secret.OriginEnvironment:
		return secret.Secret{}, kserrors.UserError{
			Message:    "active secret comes from the environment",
			Suggestion: fmt.Sprintf("Rotate by changing %s and restarting; keyshift only rotates file-backed secrets", backends.EnvVarSecret),
		}
	case secret.OriginRemoteManager:
		return secret.Secret{}, kserrors.UserError{
			Message:    "active secret is managed remotely",
			Suggestion: "Rotate the secret in the remote manager, then store the outgoing value with 'keyshift rotate --previous-only'",
		}
	}

	next, err := secret.Generate()
	if err != nil {
		return secret.Secret{}, err
	}
	// Previous and active may never be equal; a rotation that does not
	// change the value is refused.
	if next.Value == current.Value {
		return secret.Secret{}, fmt.Errorf("generated secret equals current secret; refusing no-op rotation")
	}

	if err := r.file.StorePrevious(current); err != nil {
		return secret.Secret{}, err
	}
	if err := r.file.ReplaceActive(next); err != nil {
		return secret.Secret{}, err
	}

	r.mu.Lock()
	r.active = &next
	r.mu.Unlock()

	r.logger.Info("Rotated session secret; previous value retained for migration")
	return next, nil
}
