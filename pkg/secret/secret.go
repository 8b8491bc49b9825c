// Package secret defines the session secret value type and the single
// generation primitive shared by the resolver and the CLI.
//
// A Secret is an opaque hex string together with the backend it came from.
// Secrets are immutable once produced: rotation always creates a new Secret
// value, never mutates an existing one. The strength check is deliberately a
// check on the string representation (not decoded bytes) so that explicit
// operator-supplied secrets of any encoding are measured the same way.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MinLength is the minimum number of characters a secret must have to pass
// strength validation. Generated secrets are 64 hex characters (32 random
// bytes), comfortably above this floor.
const MinLength = 32

// GeneratedLength is the length in characters of a generated secret.
const GeneratedLength = 64

// Origin identifies which backend produced a secret.
type Origin string

// Backend origins, in resolution precedence order. Generated marks a secret
// minted by this process because no backend held one.
const (
	OriginEnvironment   Origin = "environment"
	OriginRemoteManager Origin = "remote-manager"
	OriginFileSystem    Origin = "filesystem"
	OriginGenerated     Origin = "generated"
)

// Secret is an immutable session signing secret.
type Secret struct {
	// Value is the secret material as a string. Hex for generated secrets;
	// operator-supplied values are carried verbatim.
	Value string

	// Origin records the backend that produced this secret.
	Origin Origin
}

// IsSecure reports whether the secret passes strength validation.
func (s Secret) IsSecure() bool {
	return ValidateStrength(s.Value)
}

// String redacts the secret value. Use Value explicitly where the material
// is actually needed.
func (s Secret) String() string {
	return fmt.Sprintf("secret(origin=%s, len=%d)", s.Origin, len(s.Value))
}

// Generate produces a new secret from 32 cryptographically secure random
// bytes, hex-encoded to 64 lowercase characters. This is the only place in
// the module that generates secret material; the CLI and all backends call
// through here.
func Generate() (Secret, error) {
	buf := make([]byte, GeneratedLength/2)
	if _, err := rand.Read(buf); err != nil {
		return Secret{}, fmt.Errorf("failed to read from system entropy source: %w", err)
	}
	return Secret{
		Value:  hex.EncodeToString(buf),
		Origin: OriginGenerated,
	}, nil
}

// ValidateStrength reports whether value meets the minimum length for a
// production session secret. The check counts characters of the string
// representation, not decoded bytes: a 32-character hex string (16 bytes of
// entropy) passes. That boundary matches the deployed contract and is pinned
// by tests.
func ValidateStrength(value string) bool {
	return len(value) >= MinLength
}
