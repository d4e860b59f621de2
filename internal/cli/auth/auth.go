package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "thrivebase-cli"
)

// ErrNoSession is returned when nothing is stored for an API host
var ErrNoSession = errors.New("not authenticated. Please run 'thrivebase signin' first")

// getKeyringKey returns a unique key for storing session cookies per API host
func getKeyringKey(apiHost string) string {
	return fmt.Sprintf("session-%s", apiHost)
}

// SaveSession persists the serialized session cookies in the OS keychain/credential manager
func SaveSession(apiHost, data string) error {
	key := getKeyringKey(apiHost)
	if err := keyring.Set(service, key, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession retrieves the serialized session cookies from the OS keychain/credential manager
func LoadSession(apiHost string) (string, error) {
	key := getKeyringKey(apiHost)
	data, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

// DeleteSession removes the stored session cookies
func DeleteSession(apiHost string) error {
	key := getKeyringKey(apiHost)
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
