// Package cryptox seals small blobs (the persisted credential) with an
// argon2id-derived AES-256-GCM key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32
)

// ErrMalformedBlob is returned by Open when the blob is too short or fails
// authentication (wrong passphrase, tampering).
var ErrMalformedBlob = errors.New("malformed sealed blob")

// DeriveKey stretches passphrase with argon2id into a 32-byte key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// Sealer encrypts and decrypts blobs with a passphrase. Every Seal draws a
// fresh salt and nonce; the blob layout is salt || nonce || ciphertext.
type Sealer struct {
	passphrase []byte
}

func NewSealer(passphrase string) *Sealer {
	return &Sealer{passphrase: []byte(passphrase)}
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	aead, err := newGCM(DeriveKey(s.passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if len(blob) < saltSize {
		return nil, ErrMalformedBlob
	}
	salt, rest := blob[:saltSize], blob[saltSize:]

	aead, err := newGCM(DeriveKey(s.passphrase, salt))
	if err != nil {
		return nil, err
	}
	if len(rest) < aead.NonceSize() {
		return nil, ErrMalformedBlob
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrMalformedBlob
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
