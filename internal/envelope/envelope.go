// Package envelope encrypts user snippets before they are persisted.
//
// The Fernet key is decoded once at startup and sealed in a memguard enclave;
// it is only unsealed for the duration of a single encrypt or decrypt call.
// Construction fails when the key is missing or malformed, and encryption
// failures never fall back to plaintext.
package envelope

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/fernet/fernet-go"
)

var (
	// ErrKeyMissing is returned when no key is configured.
	ErrKeyMissing = errors.New("envelope: encryption key is missing")
	// ErrKeyMalformed is returned for keys that are not 32-byte url-safe base64.
	ErrKeyMalformed = errors.New("envelope: encryption key is malformed")
	// ErrDecrypt is returned for tokens that fail authentication or decoding.
	ErrDecrypt = errors.New("envelope: token could not be decrypted")
)

// Envelope is safe for concurrent use.
type Envelope struct {
	key *memguard.Enclave
}

// New decodes a Fernet key and seals it.
func New(encodedKey string) (*Envelope, error) {
	if encodedKey == "" {
		return nil, ErrKeyMissing
	}
	k, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMalformed, err)
	}
	// NewEnclave wipes the source slice.
	return &Envelope{key: memguard.NewEnclave(k[:])}, nil
}

// GenerateKey returns a fresh encoded Fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	defer memguard.WipeBytes(k[:])
	return k.Encode(), nil
}

// Encrypt returns the Fernet token for plaintext.
func (e *Envelope) Encrypt(plaintext string) (string, error) {
	var tok []byte
	err := e.withKey(func(k *fernet.Key) error {
		var err error
		tok, err = fernet.EncryptAndSign([]byte(plaintext), k)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("envelope: encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a Fernet token. Tokens never expire.
func (e *Envelope) Decrypt(token string) (string, error) {
	var msg []byte
	err := e.withKey(func(k *fernet.Key) error {
		msg = fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{k})
		if msg == nil {
			return ErrDecrypt
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

func (e *Envelope) withKey(fn func(*fernet.Key) error) error {
	buf, err := e.key.Open()
	if err != nil {
		return fmt.Errorf("envelope: open key: %w", err)
	}
	defer buf.Destroy()

	var k fernet.Key
	copy(k[:], buf.Bytes())
	defer memguard.WipeBytes(k[:])

	return fn(&k)
}
