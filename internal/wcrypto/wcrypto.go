// Package wcrypto encrypts wallet addresses at rest. Tasks never carry the
// plain address; the scheduler decodes it right before a search.
package wcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrDecrypt is returned for any undecodable or tampered payload.
var ErrDecrypt = errors.New("wallet address decode failed")

// Codec encrypts and decrypts wallet addresses with AES-256-GCM.
// Payloads are hex(nonce || ciphertext).
type Codec struct {
	aead cipher.AEAD
}

// New creates a codec from a hex-encoded 32-byte key.
func New(hexKey string) (*Codec, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals a plain wallet address.
func (c *Codec) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a sealed wallet address. Any malformed or tampered payload
// returns ErrDecrypt.
func (c *Codec) Decrypt(enc string) (string, error) {
	raw, err := hex.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}
