// Package sealer encrypts order secrets before they reach the database.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var ErrCiphertext = errors.New("sealer: malformed or tampered ciphertext")

const keyInfo = "order-secret/v1"

// Sealer authenticates and encrypts blobs with XChaCha20-Poly1305. The additional
// data ties a ciphertext to the record it belongs to.
type Sealer struct {
	aead cipher.AEAD
}

// New derives the data key from the encryption key, salted with the signing key.
func New(encryptionKey, signingKey string) (*Sealer, error) {
	if encryptionKey == "" {
		return nil, errors.New("sealer: encryption key is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(encryptionKey), []byte(signingKey), []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("sealer: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sealer: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (s *Sealer) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, ErrCiphertext
	}
	nonce, sealed := ciphertext[:s.aead.NonceSize()], ciphertext[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}
