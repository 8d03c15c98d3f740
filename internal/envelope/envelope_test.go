package envelope

import (
	"errors"
	"strings"
	"testing"
)

func newTestEnvelope(t *testing.T) (*Envelope, string) {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env, err := New(key)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	return env, key
}

func TestNew_FailsClosed(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrKeyMissing) {
		t.Fatalf("expected ErrKeyMissing, got %v", err)
	}
	if _, err := New("not-a-key"); !errors.Is(err, ErrKeyMalformed) {
		t.Fatalf("expected ErrKeyMalformed, got %v", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	env, _ := newTestEnvelope(t)
	plain := "def add(a, b):\n    return a + b  # 한국어 ✓"

	tok, err := env.Encrypt(plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(tok, "add") {
		t.Fatalf("token leaks plaintext: %q", tok)
	}
	got, err := env.Decrypt(tok)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != plain {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecrypt_RotatedKeyFails(t *testing.T) {
	a, _ := newTestEnvelope(t)
	b, _ := newTestEnvelope(t)

	tok, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := b.Decrypt(tok); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt with rotated key, got %v", err)
	}
	if _, err := a.Decrypt("garbage"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for garbage, got %v", err)
	}
}

func TestEnvelope_SameKeyTwoInstances(t *testing.T) {
	_, key := newTestEnvelope(t)
	a, _ := New(key)
	b, _ := New(key)
	tok, _ := a.Encrypt("x")
	if got, err := b.Decrypt(tok); err != nil || got != "x" {
		t.Fatalf("instances sharing a key must interoperate: %q %v", got, err)
	}
}
