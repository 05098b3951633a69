package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// IDCipher obfuscates raw drive item ids before they are exposed to clients,
// so that ids cannot be harvested and replayed against the upstream API.
// AES-256-GCM with a random nonce; the key is derived from the site secret.
type IDCipher struct {
	aead cipher.AEAD
}

// NewIDCipher creates an id cipher keyed by the site secret.
func NewIDCipher(secret string) (*IDCipher, error) {
	if secret == "" {
		return nil, ErrNoSecretKey
	}
	block, err := aes.NewCipher(deriveKey("id", secret))
	if err != nil {
		return nil, fmt.Errorf("creating id cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &IDCipher{aead: aead}, nil
}

// Encrypt seals a raw item id into an opaque URL-safe string.
func (c *IDCipher) Encrypt(id string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(id), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an obfuscated id. Any malformed or tampered input fails.
func (c *IDCipher) Decrypt(obfuscated string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(obfuscated)
	if err != nil {
		return "", fmt.Errorf("decoding id: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("id shorter than nonce size")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	id, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting id: %w", err)
	}
	return string(id), nil
}
