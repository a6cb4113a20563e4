package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// ErrNotFound is returned when no credential is stored for a key.
// Absence is an expected outcome (the caller prompts for a password),
// not a failure of the keyring itself.
var ErrNotFound = errors.New("credential not found")

// openKeyring returns a keyring scoped to one service string. Accounts
// use distinct service strings (Account.KeyringService) so credentials
// for different accounts never collide.
func openKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(model.ConfigDir(), "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("hawk-tui-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring %q: %w", service, err)
	}
	return ring, nil
}

// Get retrieves the credential stored under (service, user). Returns
// ErrNotFound when nothing is stored there.
func Get(service, user string) (string, error) {
	ring, err := openKeyring(service)
	if err != nil {
		return "", err
	}

	item, err := ring.Get(user)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("%w for %s/%s", ErrNotFound, service, user)
		}
		return "", fmt.Errorf("getting credential %s/%s: %w", service, user, err)
	}

	return string(item.Data), nil
}

// Set stores a credential under (service, user).
func Set(service, user, value string) error {
	ring, err := openKeyring(service)
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  user,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %s/%s: %w", service, user, err)
	}

	return nil
}

// Delete removes the credential stored under (service, user). Deleting
// an absent credential is not an error.
func Delete(service, user string) error {
	ring, err := openKeyring(service)
	if err != nil {
		return err
	}

	err = ring.Remove(user)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %s/%s: %w", service, user, err)
	}

	return nil
}
