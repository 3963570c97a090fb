// Package crypto seals provider credentials so they can be committed to config.yaml.
//
// A sealed value looks like "enc:aes256:<base64(nonce|ciphertext)>" and is opened
// with the 32-byte master key held in AIROUTER_MASTER_KEY. Values without the
// prefix are treated as plain text and pass through Open unchanged.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MasterKeyEnv names the environment variable holding the hex-encoded master key.
const MasterKeyEnv = "AIROUTER_MASTER_KEY"

const sealedPrefix = "enc:aes256:"

// ErrNoMasterKey is returned when a sealed value is found but no master key is configured.
var ErrNoMasterKey = errors.New("crypto: " + MasterKeyEnv + " is not set")

// Keyring opens and seals credential envelopes with a single AES-256-GCM key.
type Keyring struct {
	aead cipher.AEAD
}

// NewKeyring returns a Keyring for a 32-byte key.
func NewKeyring(key []byte) (*Keyring, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: master key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return &Keyring{aead: aead}, nil
}

// KeyringFromEnv builds a Keyring from MasterKeyEnv (64 hex chars, e.g. `openssl rand -hex 32`).
func KeyringFromEnv() (*Keyring, error) {
	hexKey := os.Getenv(MasterKeyEnv)
	if hexKey == "" {
		return nil, ErrNoMasterKey
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: %s is not valid hex: %w", MasterKeyEnv, err)
	}
	return NewKeyring(key)
}

// Seal encrypts plaintext under a fresh random nonce.
func (k *Keyring) Seal(plaintext string) (string, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := k.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Plain values are returned as-is.
func (k *Keyring) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("crypto: sealed value is not base64: %w", err)
	}
	n := k.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("crypto: sealed value too short")
	}
	plaintext, err := k.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open failed (wrong key or corrupted value): %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the envelope prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
