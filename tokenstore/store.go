// tokenstore/store.go
// -------------------
// Token persistence backends. FileStore keeps the access/refresh pair in a
// single file sealed with ChaCha20-Poly1305 so tokens never sit on disk in
// the clear; MemoryStore holds the pair in memory for tests and short-lived
// processes. Both satisfy the pipeline's TokenStore capability.
package tokenstore

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required encryption key length in bytes.
const KeySize = chacha20poly1305.KeySize

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// FileStore persists the token pair in one encrypted file.
type FileStore struct {
	path string
	key  []byte
}

// NewFileStore returns a store writing to path, sealing with the given
// 32-byte key.
func NewFileStore(path string, key []byte) (*FileStore, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	dup := make([]byte, KeySize)
	copy(dup, key)
	return &FileStore{path: path, key: dup}, nil
}

// Save seals and writes the pair. The file is replaced atomically so a crash
// mid-write never leaves a truncated token file behind.
func (s *FileStore) Save(accessToken, refreshToken string) error {
	plain, err := jsoniter.Marshal(tokenPair{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("encode token pair: %w", err)
	}

	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads and opens the stored pair. A missing file is not an error; it
// reports an empty pair.
func (s *FileStore) Load() (string, string, error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}

	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", "", fmt.Errorf("token file %s is corrupt", s.path)
	}
	nonce, box := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", "", fmt.Errorf("unseal token file %s: %w", s.path, err)
	}

	var pair tokenPair
	if err := jsoniter.Unmarshal(plain, &pair); err != nil {
		return "", "", fmt.Errorf("decode token pair: %w", err)
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// Clear removes the token file. Clearing an absent file succeeds.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu      sync.Mutex
	access  string
	refresh string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = accessToken
	s.refresh = refreshToken
	return nil
}

func (s *MemoryStore) Load() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	return nil
}
