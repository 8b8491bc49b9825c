// Package secure provides memory-safe storage for signing key material.
//
// Secrets resolved at startup live for the whole process. Rather than keep
// the plaintext resident in ordinary Go memory, this package wraps memguard
// so the material is encrypted at rest (XSalsa20Poly1305), mlocked against
// swapping, and only decrypted for the duration of a single use.
//
// If mlock is unavailable (RLIMIT_MEMLOCK), memguard degrades gracefully to
// standard allocation; callers do not need to handle that case.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrKeyDestroyed is returned when using a key after Destroy.
var ErrKeyDestroyed = errors.New("key has been destroyed")

// Key holds signing key material in an encrypted memguard enclave.
// The plaintext only exists inside a Use callback.
type Key struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewKey seals the given material into a protected enclave. The input slice
// is copied; callers should zero their copy when possible.
func NewKey(material []byte) *Key {
	return &Key{enclave: memguard.NewEnclave(material)}
}

// NewKeyFromString seals a string secret into a protected enclave.
func NewKeyFromString(value string) *Key {
	return NewKey([]byte(value))
}

// Use decrypts the key, invokes fn with the plaintext, and wipes the
// decrypted copy before returning. The slice passed to fn must not escape
// the callback.
func (k *Key) Use(fn func(material []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return ErrKeyDestroyed
	}

	locked, err := k.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy marks the key unusable. Idempotent. The encrypted enclave contents
// are safe to leave for garbage collection; call memguard.Purge at process
// exit for full cleanup.
func (k *Key) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}
	k.enclave = nil
	k.destroyed = true
}
