package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainService is the OS keychain service identifier
	KeychainService = "fluentflow"

	// APIKeyAccount holds the generative service key
	APIKeyAccount = "api_key"
)

// StoreAPIKey saves key in the OS keychain.
func StoreAPIKey(key string) error {
	if key == "" {
		return errors.New("empty API key")
	}
	if err := keyring.Set(KeychainService, APIKeyAccount, key); err != nil {
		return fmt.Errorf("store API key: %w", err)
	}
	return nil
}

// KeychainAPIKey returns the key saved in the OS keychain, or "" when none
// is saved or no keychain is reachable.
func KeychainAPIKey() string {
	key, err := keyring.Get(KeychainService, APIKeyAccount)
	if err != nil {
		return ""
	}
	return key
}

// DeleteAPIKey removes the saved key. Deleting a missing key is not an error.
func DeleteAPIKey() error {
	if err := keyring.Delete(KeychainService, APIKeyAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete API key: %w", err)
	}
	return nil
}
