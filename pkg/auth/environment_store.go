package auth

import (
	"os"
	"strings"
)

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only: keys come from IGEVENTS_API_KEY or <PROVIDER>_API_KEY.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store always fails; environment variables are not writable at runtime
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrReadOnlyStore
}

// Retrieve reads the API key for a provider from the environment
func (e *EnvironmentStore) Retrieve(provider string) (*Credential, error) {
	if provider == "" {
		return nil, ErrInvalidCredential
	}

	key := lookupKey(provider)
	if key == "" {
		return nil, ErrCredentialNotFound
	}

	return &Credential{
		Provider: provider,
		APIKey:   key,
	}, nil
}

// Delete always fails; environment variables are not writable at runtime
func (e *EnvironmentStore) Delete(provider string) error {
	return ErrReadOnlyStore
}

// Exists checks whether the environment carries a key for the provider
func (e *EnvironmentStore) Exists(provider string) bool {
	return lookupKey(provider) != ""
}

func lookupKey(provider string) string {
	if v := os.Getenv("IGEVENTS_API_KEY"); v != "" {
		return v
	}
	return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
}
