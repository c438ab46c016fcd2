// Package store provides the persistence layer: a Backend interface with a
// local encrypted implementation, a Google-Sheets-backed remote
// implementation, and a caching decorator that keeps the remote readable
// when the network is not.
package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KV is a minimal key-value blob store. The local backend keeps one JSON
// blob per logical collection; the caching decorator reuses the same store
// with suffixed keys.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// EncryptedKV stores each key as one chacha20poly1305-sealed file in a
// directory. The nonce is prepended to the ciphertext.
type EncryptedKV struct {
	dir       string
	aead      cipher.AEAD
	nonceSize int
}

const keyFileName = "store.key"

// NewEncryptedKV opens (or initializes) an encrypted store in dir. When key
// is nil a random key is generated on first use and kept in the data
// directory, which protects blobs at rest without any user-managed secret.
func NewEncryptedKV(dir string, key []byte) (*EncryptedKV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	if key == nil {
		var err error
		key, err = loadOrCreateKey(filepath.Join(dir, keyFileName))
		if err != nil {
			return nil, err
		}
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("store: init cipher: %w", err)
	}
	return &EncryptedKV{dir: dir, aead: aead, nonceSize: chacha20poly1305.NonceSizeX}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	if raw, err := os.ReadFile(path); err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("store: key file %s is corrupt", path)
		}
		return key, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("store: generate key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("store: write key file: %w", err)
	}
	return key, nil
}

// Get returns the decrypted blob for key; ok is false when the key has
// never been written.
func (s *EncryptedKV) Get(key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read %s: %w", key, err)
	}
	if len(raw) < s.nonceSize {
		return nil, false, fmt.Errorf("store: blob %s too short", key)
	}
	plain, err := s.aead.Open(nil, raw[:s.nonceSize], raw[s.nonceSize:], nil)
	if err != nil {
		return nil, false, fmt.Errorf("store: decrypt %s: %w", key, err)
	}
	return plain, true, nil
}

// Set seals and writes the blob for key.
func (s *EncryptedKV) Set(key string, value []byte) error {
	nonce := make([]byte, s.nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("store: nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, value, nil)
	if err := os.WriteFile(s.path(key), sealed, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob for key; deleting a missing key is not an error.
func (s *EncryptedKV) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

func (s *EncryptedKV) path(key string) string {
	return filepath.Join(s.dir, key+".bin")
}
