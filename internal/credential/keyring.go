// Package credential stores the API key in the OS keyring.
package credential

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "resourcectl"

// Store keeps one API key per server URL in the OS keyring.
type Store struct {
	service string
}

// NewStore creates a new keyring store.
func NewStore() *Store {
	return &Store{service: keyringService}
}

func account(serverURL string) string {
	return strings.TrimRight(serverURL, "/")
}

// SetAPIKey stores key for serverURL. An empty key removes the entry.
func (s *Store) SetAPIKey(serverURL, key string) error {
	if key == "" {
		return s.DeleteAPIKey(serverURL)
	}
	return keyring.Set(s.service, account(serverURL), key)
}

// APIKey returns the key stored for serverURL, or "" if there is none.
func (s *Store) APIKey(serverURL string) (string, error) {
	key, err := keyring.Get(s.service, account(serverURL))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return key, err
}

// DeleteAPIKey removes the key stored for serverURL.
func (s *Store) DeleteAPIKey(serverURL string) error {
	err := keyring.Delete(s.service, account(serverURL))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
