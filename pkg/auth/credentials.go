package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultProvider names the credential slot used when none is specified
const DefaultProvider = "groq"

// Credential holds an inference provider API key
type Credential struct {
	Provider     string    `json:"provider"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

var (
	// ErrCredentialNotFound indicates no stored credential for a provider
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidCredential indicates a credential missing required fields
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrReadOnlyStore indicates the store cannot persist credentials
	ErrReadOnlyStore = errors.New("store is read-only")
)

// CredentialStore is the interface for storing and retrieving API credentials
type CredentialStore interface {
	// Store saves a credential
	Store(cred *Credential) error

	// Retrieve gets the credential for a provider
	Retrieve(provider string) (*Credential, error)

	// Delete removes the credential for a provider
	Delete(provider string) error

	// Exists checks if a credential exists for a provider
	Exists(provider string) bool
}

// Manager resolves credentials across storage backends with fallback:
// system keyring first, encrypted file second, environment last.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err == nil {
		stores = append(stores, encryptedStore)
	}

	stores = append(stores, NewEnvironmentStore())

	if len(stores) == 0 {
		return nil, errors.New("no credential storage backend available")
	}

	return &Manager{stores: stores}, nil
}

// Store saves a credential to the first writable backend
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.APIKey == "" {
		return ErrInvalidCredential
	}
	if cred.Provider == "" {
		cred.Provider = DefaultProvider
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err != nil {
			if errors.Is(err, ErrReadOnlyStore) {
				continue
			}
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("no writable credential store")
}

// Retrieve returns the first credential found across backends
func (m *Manager) Retrieve(provider string) (*Credential, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	for _, store := range m.stores {
		cred, err := store.Retrieve(provider)
		if err == nil {
			return cred, nil
		}
	}
	return nil, ErrCredentialNotFound
}

// Delete removes the credential from every backend that has it
func (m *Manager) Delete(provider string) error {
	if provider == "" {
		provider = DefaultProvider
	}
	deleted := false
	for _, store := range m.stores {
		if store.Exists(provider) {
			if err := store.Delete(provider); err == nil {
				deleted = true
			}
		}
	}
	if !deleted {
		return ErrCredentialNotFound
	}
	return nil
}

// configDir returns the igevents configuration directory, creating it if needed
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "igevents")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
