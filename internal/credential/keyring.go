package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "rental-console"

// KeyringVault keeps credentials in the operating system keystore, falling
// back to an encrypted file under dir when no native backend is available.
type KeyringVault struct {
	ring keyring.Keyring
}

var _ Vault = (*KeyringVault)(nil)

// OpenKeyring returns a configured keyring-backed vault.
func OpenKeyring(dir string) (*KeyringVault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("rental-console-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringVault{ring: ring}, nil
}

// NewKeyringVault wraps an already opened keyring.
func NewKeyringVault(ring keyring.Keyring) *KeyringVault {
	return &KeyringVault{ring: ring}
}

// Get retrieves a credential value by key from the keyring.
func (v *KeyringVault) Get(key string) (string, bool, error) {
	item, err := v.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), true, nil
}

// Set stores a credential value by key in the keyring.
func (v *KeyringVault) Set(key string, value string) error {
	err := v.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "rental-console " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring. Missing keys are
// ignored.
func (v *KeyringVault) Delete(key string) error {
	err := v.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
