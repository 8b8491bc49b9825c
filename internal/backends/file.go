package backends

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/systmms/keyshift/pkg/secret"
)

const (
	secretDirName       = ".flowise"
	secretFileName      = "session.secret"
	previousFileSuffix  = ".previous"
	secretDirMode       = 0700
	secretFileMode      = 0600
)

// FileBackend stores the session secret as a plain-text hex string under
// <base>/.flowise/session.secret, with the retired secret (if any) in a
// sibling session.secret.previous file.
type FileBackend struct {
	baseDir string
}

// NewFileBackend creates a file backend rooted at baseDir. An empty baseDir
// resolves through DefaultBaseDir.
func NewFileBackend(baseDir string) *FileBackend {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	return &FileBackend{baseDir: baseDir}
}

// DefaultBaseDir returns the base directory for file-backed secrets:
// SECRETKEY_PATH if set, otherwise the user's home directory, with the
// temp directory as a last resort.
func DefaultBaseDir() string {
	if p := os.Getenv(EnvVarBasePath); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

// Path returns the location of the active secret file.
func (b *FileBackend) Path() string {
	return filepath.Join(b.baseDir, secretDirName, secretFileName)
}

// PreviousPath returns the location of the previous-secret sibling file.
func (b *FileBackend) PreviousPath() string {
	return b.Path() + previousFileSuffix
}

// Lookup reads the active secret file. Returns ErrSecretNotFound when the
// file does not exist; other read failures propagate.
func (b *FileBackend) Lookup() (secret.Secret, error) {
	value, err := b.readFile(b.Path())
	if err != nil {
		return secret.Secret{}, err
	}
	return secret.Secret{Value: value, Origin: secret.OriginFileSystem}, nil
}

// Provision writes a freshly generated secret to the active location and
// returns the value that ends up on disk.
//
// Creation is exclusive: when two processes race to provision on first run,
// exactly one create succeeds and the loser re-reads the winner's value
// instead of failing or overwriting it.
func (b *FileBackend) Provision(s secret.Secret) (secret.Secret, error) {
	path := b.Path()
	if err := os.MkdirAll(filepath.Dir(path), secretDirMode); err != nil {
		return secret.Secret{}, fmt.Errorf("failed to create secret directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, secretFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost the first-run race; the other process's secret wins.
			return b.Lookup()
		}
		return secret.Secret{}, fmt.Errorf("failed to create secret file: %w", err)
	}

	if _, err := f.WriteString(s.Value); err != nil {
		f.Close()
		os.Remove(path)
		return secret.Secret{}, fmt.Errorf("failed to write secret file: %w", err)
	}
	if err := f.Close(); err != nil {
		return secret.Secret{}, fmt.Errorf("failed to close secret file: %w", err)
	}

	return secret.Secret{Value: s.Value, Origin: secret.OriginGenerated}, nil
}

// LookupPrevious reads the previous-secret file. The previous secret is
// optional by contract, so every failure is reported as ErrSecretNotFound.
func (b *FileBackend) LookupPrevious() (secret.Secret, error) {
	value, err := b.readFile(b.PreviousPath())
	if err != nil {
		return secret.Secret{}, ErrSecretNotFound
	}
	return secret.Secret{Value: value, Origin: secret.OriginFileSystem}, nil
}

// StorePrevious persists a retired secret to the sibling location,
// overwriting any earlier value. Invoked once per operator rotation event.
func (b *FileBackend) StorePrevious(s secret.Secret) error {
	path := b.PreviousPath()
	if err := os.MkdirAll(filepath.Dir(path), secretDirMode); err != nil {
		return fmt.Errorf("failed to create secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.Value), secretFileMode); err != nil {
		return fmt.Errorf("failed to write previous secret file: %w", err)
	}
	return nil
}

// ReplaceActive overwrites the active secret file. Used by operator rotation
// after the outgoing value has been stored as previous; never used on the
// first-run provisioning path, which must stay exclusive.
func (b *FileBackend) ReplaceActive(s secret.Secret) error {
	path := b.Path()
	if err := os.MkdirAll(filepath.Dir(path), secretDirMode); err != nil {
		return fmt.Errorf("failed to create secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.Value), secretFileMode); err != nil {
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	return nil
}

func (b *FileBackend) readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
