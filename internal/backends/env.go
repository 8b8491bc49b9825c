package backends

import (
	"os"

	"github.com/systmms/keyshift/pkg/secret"
)

// EnvBackend reads an explicit secret from the process environment.
type EnvBackend struct {
	// Var is the environment variable to consult. Defaults to EnvVarSecret.
	Var string
}

// NewEnvBackend creates an environment backend for the given variable name,
// falling back to EnvVarSecret when name is empty.
func NewEnvBackend(name string) *EnvBackend {
	if name == "" {
		name = EnvVarSecret
	}
	return &EnvBackend{Var: name}
}

// Lookup returns the explicit secret, verbatim and without any strength
// validation. Strength is checked as a separate, explicit step by the caller
// so operators see a precise error rather than a silent fallthrough.
func (b *EnvBackend) Lookup() (secret.Secret, error) {
	value, ok := os.LookupEnv(b.Var)
	if !ok || value == "" {
		return secret.Secret{}, ErrSecretNotFound
	}
	return secret.Secret{Value: value, Origin: secret.OriginEnvironment}, nil
}
