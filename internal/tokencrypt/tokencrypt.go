// Package tokencrypt encrypts third-party access tokens before they are stored.
package tokencrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/thrivebase/thrivebase/internal/assert"
)

var (
	ErrMissingKey = errors.New("ENCRYPTION_KEY is required")
	ErrMalformed  = errors.New("malformed ciphertext")
)

// Cipher seals and opens tokens with XChaCha20-Poly1305
type Cipher struct {
	key []byte
}

// New derives the cipher key from the configured secret. A base64 value
// that decodes to 32 bytes is used as is; anything else is hashed.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}
	assert.Length(key, chacha20poly1305.KeySize)

	return &Cipher{key: key}, nil
}

// Encrypt returns base64(nonce || ciphertext)
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (c *Cipher) Decrypt(encoded string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < aead.NonceSize() {
		return "", ErrMalformed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return string(plaintext), nil
}
