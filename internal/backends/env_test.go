package backends_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyshift/internal/backends"
	"github.com/systmms/keyshift/pkg/secret"
)

func TestEnvBackendLookup(t *testing.T) {
	t.Setenv(backends.EnvVarSecret, "explicit-value-from-operator")

	s, err := backends.NewEnvBackend("").Lookup()
	require.NoError(t, err)
	assert.Equal(t, "explicit-value-from-operator", s.Value, "explicit secrets are taken verbatim")
	assert.Equal(t, secret.OriginEnvironment, s.Origin)
}

func TestEnvBackendUnsetOrEmpty(t *testing.T) {
	t.Setenv(backends.EnvVarSecret, "")

	_, err := backends.NewEnvBackend("").Lookup()
	assert.ErrorIs(t, err, backends.ErrSecretNotFound)

	_, err = backends.NewEnvBackend("KEYSHIFT_TEST_NEVER_SET").Lookup()
	assert.ErrorIs(t, err, backends.ErrSecretNotFound)
}

func TestEnvBackendCustomVariable(t *testing.T) {
	t.Setenv("KEYSHIFT_TEST_SECRET", "custom-var-value")

	s, err := backends.NewEnvBackend("KEYSHIFT_TEST_SECRET").Lookup()
	require.NoError(t, err)
	assert.Equal(t, "custom-var-value", s.Value)
}
