package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/systmms/keyshift/internal/backends"
	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/internal/stores"
	"github.com/systmms/keyshift/pkg/migrate"
)

// RemoteBackendConfig translates the remote block into backend settings.
// Returns nil when the file does not opt into remote resolution.
func (d *Definition) RemoteBackendConfig() *backends.RemoteConfig {
	if d == nil || d.Remote == nil {
		return nil
	}

	name := d.SecretName
	if name == "" {
		name = backends.DefaultSecretName
	}

	return &backends.RemoteConfig{
		SecretName:      name,
		Region:          d.Remote.Region,
		Endpoint:        d.Remote.Endpoint,
		AccessKeyID:     d.Remote.AccessKeyID,
		SecretAccessKey: d.Remote.SecretAccessKey,
	}
}

// NewSessionStore constructs the configured session store. The memory
// store is the default when no store block is present.
func (d *Definition) NewSessionStore(ctx context.Context) (migrate.Store, error) {
	if d == nil || d.Store == nil {
		return stores.NewMemoryStore(), nil
	}

	switch d.Store.Type {
	case "", "memory":
		return stores.NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     d.Store.Addr,
			Password: d.Store.Password,
			DB:       d.Store.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, kserrors.UserError{
				Message:    "Failed to connect to redis session store",
				Details:    err.Error(),
				Suggestion: fmt.Sprintf("Check that redis is reachable at '%s'", d.Store.Addr),
				Err:        err,
			}
		}
		return stores.NewRedisStore(client), nil

	case "postgres":
		store, err := stores.OpenPostgres(d.Store.DSN)
		if err != nil {
			return nil, kserrors.UserError{
				Message:    "Failed to connect to postgres session store",
				Details:    err.Error(),
				Suggestion: "Check the 'dsn' field of the store block",
				Err:        err,
			}
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, kserrors.ConfigurationError{
			Message:    fmt.Sprintf("unknown session store type '%s'", d.Store.Type),
			Suggestion: "Use one of: memory, redis, postgres",
		}
	}
}
