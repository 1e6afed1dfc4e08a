package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage for tokens.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Each slot is a separate keyring entry named "<user>:<key>".
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements TokenStore
var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, etc.) using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

func (k *KeyringStore) account(key Key) string {
	return k.user + ":" + string(key)
}

// Location names the keyring entry backing key.
func (k *KeyringStore) Location(key Key) string {
	return fmt.Sprintf("keyring (service %s, account %s)", k.service, k.account(key))
}

// Read returns the first line of the record from the system keyring.
func (k *KeyringStore) Read(ctx context.Context, key Key) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	secret, err := keyring.Get(k.service, k.account(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	token := firstLine(secret)
	if token == "" {
		return "", fmt.Errorf("empty token in keyring for service %s, account %s", k.service, k.account(key))
	}

	return token, nil
}

// Write persists the record to the system keyring, overwriting any existing value.
// Keyring backends replace entries as a single operation.
func (k *KeyringStore) Write(ctx context.Context, key Key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, k.account(key), value)
}

// Delete removes the keyring entry. A missing entry is not an error.
func (k *KeyringStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, k.account(key)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
