// Package errors defines the keyshift error taxonomy.
//
// Three error kinds are fatal and only occur during startup-time secret
// resolution: ConfigurationError, RemoteBackendError and InsecureSecretError.
// A host process must treat any of them as a reason to exit before binding
// its listen port. Everything on the request path is handled fail-open by
// the migrate package and never surfaces through these types.
package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates that no usable secret source was found.
// Raised when the remote manager was requested but its client could not be
// constructed, leaving neither an explicit secret nor a working backend.
type ConfigurationError struct {
	Message    string
	Suggestion string
}

func (e ConfigurationError) Error() string {
	msg := "configuration error: " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// RemoteBackendError indicates the remote secret manager was configured but
// returned an error other than not-found. There is deliberately no fallback
// past a configured-but-broken remote.
type RemoteBackendError struct {
	Operation string
	Name      string
	Err       error
}

func (e RemoteBackendError) Error() string {
	msg := fmt.Sprintf("remote secret manager failed during %s of '%s'", e.Operation, e.Name)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	msg += "\n  💡 Check credentials and network access to the secret manager, or unset its configuration to use file storage"
	return msg
}

func (e RemoteBackendError) Unwrap() error {
	return e.Err
}

// InsecureSecretError indicates the resolved secret failed strength validation.
type InsecureSecretError struct {
	Origin string
	Length int
}

func (e InsecureSecretError) Error() string {
	return fmt.Sprintf(
		"session secret from %s is too short (%d chars, need at least 32)\n  💡 Generate a strong secret with 'keyshift generate'",
		e.Origin, e.Length)
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Details != "" {
		msg += "\n  Details: " + e.Details
	}
	if e.Suggestion != "" {
		msg += "\n  💡 Try: " + e.Suggestion
	}
	return msg
}

func (e UserError) Unwrap() error {
	return e.Err
}

// IsFatalStartup reports whether err belongs to the startup-fatal taxonomy.
// Hosts use this to distinguish "abort before listening" from ordinary errors.
func IsFatalStartup(err error) bool {
	var ce ConfigurationError
	var re RemoteBackendError
	var ie InsecureSecretError
	return errors.As(err, &ce) || errors.As(err, &re) || errors.As(err, &ie)
}
