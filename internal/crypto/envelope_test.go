package crypto

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func TestKeyring_SealOpen(t *testing.T) {
	k, err := NewKeyring(testKey())
	if err != nil {
		t.Fatalf("NewKeyring() error = %v", err)
	}

	sealed, err := k.Seal("sk-live-123")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		t.Fatalf("Seal() = %q, missing prefix", sealed)
	}

	got, err := k.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "sk-live-123" {
		t.Errorf("Open() = %q, want sk-live-123", got)
	}
}

func TestKeyring_SealUsesFreshNonce(t *testing.T) {
	k, _ := NewKeyring(testKey())
	a, _ := k.Seal("same")
	b, _ := k.Seal("same")
	if a == b {
		t.Error("Seal() returned identical envelopes for the same input")
	}
}

func TestKeyring_OpenPlainPassThrough(t *testing.T) {
	k, _ := NewKeyring(testKey())
	got, err := k.Open("plain-key")
	if err != nil || got != "plain-key" {
		t.Errorf("Open(plain) = %q, %v", got, err)
	}
}

func TestKeyring_OpenWrongKey(t *testing.T) {
	k, _ := NewKeyring(testKey())
	sealed, _ := k.Seal("secret")

	other := testKey()
	other[0] = 0xff
	k2, _ := NewKeyring(other)
	if _, err := k2.Open(sealed); err == nil {
		t.Error("Open() with the wrong key should fail")
	}
}

func TestKeyring_OpenCorrupt(t *testing.T) {
	k, _ := NewKeyring(testKey())
	if _, err := k.Open(sealedPrefix + "!!!"); err == nil {
		t.Error("Open() should reject non-base64 payloads")
	}
	if _, err := k.Open(sealedPrefix + "AAAA"); err == nil {
		t.Error("Open() should reject payloads shorter than the nonce")
	}
}

func TestNewKeyring_BadLength(t *testing.T) {
	if _, err := NewKeyring([]byte("short")); err == nil {
		t.Error("NewKeyring() should reject keys that are not 32 bytes")
	}
}

func TestKeyringFromEnv(t *testing.T) {
	t.Setenv(MasterKeyEnv, "")
	if _, err := KeyringFromEnv(); !errors.Is(err, ErrNoMasterKey) {
		t.Errorf("KeyringFromEnv() error = %v, want ErrNoMasterKey", err)
	}

	t.Setenv(MasterKeyEnv, "not-hex")
	if _, err := KeyringFromEnv(); err == nil {
		t.Error("KeyringFromEnv() should reject non-hex keys")
	}

	t.Setenv(MasterKeyEnv, hex.EncodeToString(testKey()))
	if _, err := KeyringFromEnv(); err != nil {
		t.Errorf("KeyringFromEnv() error = %v", err)
	}
}
