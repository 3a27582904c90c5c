// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package session encrypts session state at rest. The transport library
// persists credential blobs through this cipher so a leaked data directory
// does not leak the account.
package session

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20poly1305"
)

// Error codes returned by the cipher.
const (
	CodeBadKey        = "SESSION_BAD_KEY"
	CodeDecryptFailed = "SESSION_DECRYPT_FAILED"
)

// Cipher seals and opens session blobs with XChaCha20-Poly1305.
// The 24-byte random nonce is prepended to the ciphertext, so sealed blobs
// are self-contained.
type Cipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, oops.Code(CodeBadKey).
			With("key_len", len(key)).
			Errorf("session key must be %d bytes", chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, oops.Code(CodeBadKey).Wrap(err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromHex builds a Cipher from a hex-encoded 256-bit key, the form
// carried in configuration.
func NewCipherFromHex(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, oops.Code(CodeBadKey).Wrapf(err, "session key is not valid hex")
	}
	return NewCipher(key)
}

// Seal encrypts plaintext and returns nonce || ciphertext.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, oops.Wrapf(err, "generate nonce")
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Tampered or truncated input fails
// with CodeDecryptFailed.
func (c *Cipher) Open(blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, oops.Code(CodeDecryptFailed).
			With("blob_len", len(blob)).
			Errorf("sealed blob too short")
	}
	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, oops.Code(CodeDecryptFailed).Wrap(err)
	}
	return plaintext, nil
}

// GenerateKey returns a fresh random key in the hex form accepted by
// NewCipherFromHex.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", oops.Wrapf(err, "generate session key")
	}
	return hex.EncodeToString(key), nil
}
