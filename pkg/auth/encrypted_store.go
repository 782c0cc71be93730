package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	nonceSize  = 12
	iterations = 100000
	keySize    = 32
)

// EncryptedFileStore implements CredentialStore using an AES-GCM encrypted
// file. The key is derived from a machine-specific passphrase, so the file
// is not portable between hosts.
type EncryptedFileStore struct {
	filePath string
}

// encryptedFile is the on-disk layout
type encryptedFile struct {
	Salt        []byte                 `json:"salt"`
	Credentials map[string]*Credential `json:"credentials"`
}

// NewEncryptedFileStore creates an encrypted file credential store
func NewEncryptedFileStore(filePath string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &EncryptedFileStore{filePath: filePath}, nil
}

// Store saves a credential to the encrypted file
func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.APIKey == "" {
		return ErrInvalidCredential
	}

	file, err := e.load()
	if err != nil {
		return err
	}

	file.Credentials[cred.Provider] = cred
	return e.save(file)
}

// Retrieve gets a credential from the encrypted file
func (e *EncryptedFileStore) Retrieve(provider string) (*Credential, error) {
	if provider == "" {
		return nil, ErrInvalidCredential
	}

	file, err := e.load()
	if err != nil {
		return nil, err
	}

	cred, ok := file.Credentials[provider]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

// Delete removes a credential from the encrypted file
func (e *EncryptedFileStore) Delete(provider string) error {
	if provider == "" {
		return ErrInvalidCredential
	}

	file, err := e.load()
	if err != nil {
		return err
	}

	if _, ok := file.Credentials[provider]; !ok {
		return ErrCredentialNotFound
	}
	delete(file.Credentials, provider)
	return e.save(file)
}

// Exists checks whether a credential is stored for the provider
func (e *EncryptedFileStore) Exists(provider string) bool {
	file, err := e.load()
	if err != nil {
		return false
	}
	_, ok := file.Credentials[provider]
	return ok
}

// load reads and decrypts the credential file, returning an empty file when
// none exists yet.
func (e *EncryptedFileStore) load() (*encryptedFile, error) {
	raw, err := os.ReadFile(e.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			salt := make([]byte, saltSize)
			if _, err := rand.Read(salt); err != nil {
				return nil, fmt.Errorf("failed to generate salt: %w", err)
			}
			return &encryptedFile{
				Salt:        salt,
				Credentials: make(map[string]*Credential),
			}, nil
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var envelope struct {
		Salt       []byte `json:"salt"`
		Ciphertext []byte `json:"ciphertext"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	plaintext, err := decrypt(envelope.Ciphertext, deriveKey(envelope.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	file := &encryptedFile{Salt: envelope.Salt}
	if err := json.Unmarshal(plaintext, &file.Credentials); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if file.Credentials == nil {
		file.Credentials = make(map[string]*Credential)
	}
	return file, nil
}

// save encrypts and writes the credential file
func (e *EncryptedFileStore) save(file *encryptedFile) error {
	plaintext, err := json.Marshal(file.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	ciphertext, err := encrypt(plaintext, deriveKey(file.Salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	envelope := struct {
		Salt       []byte `json:"salt"`
		Ciphertext []byte `json:"ciphertext"`
	}{Salt: file.Salt, Ciphertext: ciphertext}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal credential file: %w", err)
	}

	tmp := e.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, e.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize credential file: %w", err)
	}
	return nil
}

// deriveKey stretches a machine-bound passphrase into an AES key
func deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(machinePassphrase()), salt, iterations, keySize, sha256.New)
}

// machinePassphrase builds a passphrase from stable host properties. Not a
// defense against a local attacker with the same user account, only against
// credential files copied off the machine.
func machinePassphrase() string {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return fmt.Sprintf("igevents:%s:%s", hostname, home)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, sealed, nil)
}
