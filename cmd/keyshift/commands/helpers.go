package commands

import (
	"os"

	"github.com/systmms/keyshift/internal/backends"
	"github.com/systmms/keyshift/internal/config"
	"github.com/systmms/keyshift/internal/resolve"
)

// newResolver builds a resolver from the loaded configuration. Environment
// variables win over file values: SECRETKEY_PATH beats base_dir, and the
// explicit secret variable is checked first inside the resolver itself.
func newResolver(cfg *config.Config) *resolve.Resolver {
	opts := resolve.Options{
		Logger: cfg.Logger,
	}
	opts.BaseDir = baseDirFromConfig(cfg.Definition)
	if def := cfg.Definition; def != nil {
		opts.Remote = def.RemoteBackendConfig()
	}
	return resolve.New(opts)
}

// baseDirFromConfig resolves the effective base directory for the secret
// file, applying the SECRETKEY_PATH override.
func baseDirFromConfig(def *config.Definition) string {
	if p := os.Getenv(backends.EnvVarBasePath); p != "" {
		return p
	}
	if def != nil {
		return def.BaseDir
	}
	return ""
}
