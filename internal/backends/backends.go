// Package backends implements the ordered secret sources consulted during
// resolution: the process environment, a remote secret manager and the
// filesystem. Each backend maps its own notion of "absent" onto
// ErrSecretNotFound so the resolver can tell a missing secret apart from a
// broken backend.
package backends

import "errors"

// ErrSecretNotFound is returned by a backend when the secret does not exist
// in that backend. Any other error means the backend itself failed.
var ErrSecretNotFound = errors.New("secret not found")

// DefaultSecretName is the remote secret manager entry consulted when the
// configuration does not override it.
const DefaultSecretName = "FlowiseSessionSecret"

// EnvVarSecret is the environment variable holding an explicit session
// secret. When set, it wins over every other backend and is used verbatim.
const EnvVarSecret = "EXPRESS_SESSION_SECRET"

// EnvVarBasePath overrides the base directory for file-backed secrets.
const EnvVarBasePath = "SECRETKEY_PATH"
