package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyshift/internal/backends"
	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/internal/logging"
	"github.com/systmms/keyshift/internal/stores"
)

func TestConfig_Load(t *testing.T) {
	configContent := `base_dir: /var/lib/keyshift
secret_name: ProdSessionSecret

remote:
  region: eu-west-1
  endpoint: http://localhost:4566
  access_key_id: test
  secret_access_key: test

store:
  type: redis
  addr: localhost:6379
  db: 2
`

	configPath := filepath.Join(t.TempDir(), "keyshift.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	config := &Config{
		Path:   configPath,
		Logger: logging.New(false, false),
	}
	require.NoError(t, config.Load())

	def := config.Definition
	require.NotNil(t, def)
	assert.Equal(t, "/var/lib/keyshift", def.BaseDir)
	assert.Equal(t, "ProdSessionSecret", def.SecretName)

	require.NotNil(t, def.Remote)
	assert.Equal(t, "eu-west-1", def.Remote.Region)
	assert.Equal(t, "http://localhost:4566", def.Remote.Endpoint)

	require.NotNil(t, def.Store)
	assert.Equal(t, "redis", def.Store.Type)
	assert.Equal(t, "localhost:6379", def.Store.Addr)
	assert.Equal(t, 2, def.Store.DB)
}

func TestConfig_LoadMissingFileIsNotAnError(t *testing.T) {
	config := &Config{
		Path:   filepath.Join(t.TempDir(), "absent.yaml"),
		Logger: logging.New(false, false),
	}

	require.NoError(t, config.Load())
	require.NotNil(t, config.Definition)
	assert.Empty(t, config.Definition.BaseDir)
	assert.Nil(t, config.Definition.Remote)
}

func TestParse_RejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "invalid_yaml",
			content: "base_dir: [unterminated",
		},
		{
			name:    "unknown_top_level_key",
			content: "secrit_name: oops\n",
		},
		{
			name:    "unknown_store_type",
			content: "store:\n  type: dynamodb\n",
		},
		{
			name:    "store_without_type",
			content: "store:\n  addr: localhost:6379\n",
		},
		{
			name:    "empty_secret_name",
			content: "secret_name: \"\"\n",
		},
		{
			name:    "unknown_remote_key",
			content: "remote:\n  profile: default\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.content))
			require.Error(t, err)

			var ce kserrors.ConfigurationError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestRemoteBackendConfig(t *testing.T) {
	t.Parallel()

	var none *Definition
	assert.Nil(t, none.RemoteBackendConfig())
	assert.Nil(t, (&Definition{}).RemoteBackendConfig())

	def := &Definition{
		Remote: &RemoteConfig{Region: "us-west-2"},
	}
	rc := def.RemoteBackendConfig()
	require.NotNil(t, rc)
	assert.Equal(t, backends.DefaultSecretName, rc.SecretName, "secret name defaults when unset")
	assert.Equal(t, "us-west-2", rc.Region)

	def.SecretName = "Custom"
	assert.Equal(t, "Custom", def.RemoteBackendConfig().SecretName)
}

func TestNewSessionStore_DefaultsToMemory(t *testing.T) {
	t.Parallel()

	store, err := (&Definition{}).NewSessionStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &stores.MemoryStore{}, store)
}

func TestNewSessionStore_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	def := &Definition{Store: &StoreConfig{Type: "redis", Addr: mr.Addr()}}

	store, err := def.NewSessionStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &stores.RedisStore{}, store)
}

func TestNewSessionStore_RedisUnreachable(t *testing.T) {
	t.Parallel()

	def := &Definition{Store: &StoreConfig{Type: "redis", Addr: "127.0.0.1:1"}}

	_, err := def.NewSessionStore(context.Background())
	require.Error(t, err)

	var ue kserrors.UserError
	assert.ErrorAs(t, err, &ue)
}
