package auth

import (
	"path/filepath"
	"testing"
)

func newTestEncryptedStore(t *testing.T) *EncryptedFileStore {
	t.Helper()

	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	if err != nil {
		t.Fatalf("NewEncryptedFileStore failed: %v", err)
	}
	return store
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	store := newTestEncryptedStore(t)

	cred := &Credential{Provider: "groq", APIKey: "gsk_test_key"}
	if err := store.Store(cred); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := store.Retrieve("groq")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got.APIKey != "gsk_test_key" {
		t.Errorf("unexpected API key %q", got.APIKey)
	}
	if !store.Exists("groq") {
		t.Error("expected Exists to report stored credential")
	}
}

func TestEncryptedStoreNotFound(t *testing.T) {
	store := newTestEncryptedStore(t)

	if _, err := store.Retrieve("missing"); err != ErrCredentialNotFound {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}
	if store.Exists("missing") {
		t.Error("expected Exists false for missing credential")
	}
}

func TestEncryptedStoreDelete(t *testing.T) {
	store := newTestEncryptedStore(t)

	cred := &Credential{Provider: "groq", APIKey: "gsk_test_key"}
	if err := store.Store(cred); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := store.Delete("groq"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Exists("groq") {
		t.Error("expected credential gone after delete")
	}
	if err := store.Delete("groq"); err != ErrCredentialNotFound {
		t.Errorf("expected ErrCredentialNotFound on second delete, got %v", err)
	}
}

func TestEncryptedStoreUpdate(t *testing.T) {
	store := newTestEncryptedStore(t)

	if err := store.Store(&Credential{Provider: "groq", APIKey: "old"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := store.Store(&Credential{Provider: "groq", APIKey: "new"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := store.Retrieve("groq")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got.APIKey != "new" {
		t.Errorf("expected updated key, got %q", got.APIKey)
	}
}

func TestEncryptedStoreRejectsInvalidCredential(t *testing.T) {
	store := newTestEncryptedStore(t)

	if err := store.Store(nil); err != ErrInvalidCredential {
		t.Errorf("expected ErrInvalidCredential for nil, got %v", err)
	}
	if err := store.Store(&Credential{Provider: "groq"}); err != ErrInvalidCredential {
		t.Errorf("expected ErrInvalidCredential for empty key, got %v", err)
	}
}

func TestEncryptedStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	first, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("NewEncryptedFileStore failed: %v", err)
	}
	if err := first.Store(&Credential{Provider: "groq", APIKey: "gsk_persisted"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	second, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("NewEncryptedFileStore failed: %v", err)
	}
	got, err := second.Retrieve("groq")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got.APIKey != "gsk_persisted" {
		t.Errorf("expected persisted key, got %q", got.APIKey)
	}
}

func TestEnvironmentStoreReadsKey(t *testing.T) {
	t.Setenv("IGEVENTS_API_KEY", "gsk_env_key")

	store := NewEnvironmentStore()
	cred, err := store.Retrieve("groq")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if cred.APIKey != "gsk_env_key" {
		t.Errorf("unexpected key %q", cred.APIKey)
	}
	if !store.Exists("groq") {
		t.Error("expected Exists true")
	}
}

func TestEnvironmentStoreProviderFallback(t *testing.T) {
	t.Setenv("IGEVENTS_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk_provider_key")

	store := NewEnvironmentStore()
	cred, err := store.Retrieve("groq")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if cred.APIKey != "gsk_provider_key" {
		t.Errorf("unexpected key %q", cred.APIKey)
	}
}

func TestEnvironmentStoreIsReadOnly(t *testing.T) {
	store := NewEnvironmentStore()

	if err := store.Store(&Credential{Provider: "groq", APIKey: "x"}); err != ErrReadOnlyStore {
		t.Errorf("expected ErrReadOnlyStore on Store, got %v", err)
	}
	if err := store.Delete("groq"); err != ErrReadOnlyStore {
		t.Errorf("expected ErrReadOnlyStore on Delete, got %v", err)
	}
}

func TestEnvironmentStoreMissingKey(t *testing.T) {
	t.Setenv("IGEVENTS_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	store := NewEnvironmentStore()
	if _, err := store.Retrieve("groq"); err != ErrCredentialNotFound {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}
}
