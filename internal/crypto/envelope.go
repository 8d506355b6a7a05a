// Package crypto implements the authenticated encryption envelope used for secrets at rest.
//
// An envelope is IV(12) || ciphertext || tag(16), produced by AES-256-GCM under a
// single process-wide key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	KeySize = 32
	IVSize  = 12
	TagSize = 16

	// MinEnvelopeSize is the size of an envelope holding an empty plaintext.
	MinEnvelopeSize = IVSize + TagSize
)

// ErrDecryption is returned for short, tampered or foreign-key envelopes.
var ErrDecryption = errors.New("crypto: decryption failed")

// Cipher encrypts and decrypts secret values. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// ParseHexKey decodes a 64-character hex secret into a 32-byte key.
func ParseHexKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != KeySize*2 {
		return nil, fmt.Errorf("crypto: encryption key must be %d hex characters, got %d", KeySize*2, len(raw))
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: encryption key must be hex: %w", err)
	}
	return key, nil
}

// NewCipher builds an AES-256-GCM cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: create block cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: create gcm: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// NewCipherFromHex is ParseHexKey followed by NewCipher.
func NewCipherFromHex(raw string) (*Cipher, error) {
	key, err := ParseHexKey(raw)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	envelope := make([]byte, IVSize, IVSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(c.rand, envelope[:IVSize]); err != nil {
		return nil, fmt.Errorf("crypto: generate iv: %w", err)
	}
	// Seal appends ciphertext||tag after the IV.
	return c.aead.Seal(envelope, envelope[:IVSize], []byte(plaintext), nil), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Cipher) Decrypt(envelope []byte) (string, error) {
	if len(envelope) < MinEnvelopeSize {
		return "", fmt.Errorf("%w: envelope is %d bytes, minimum is %d", ErrDecryption, len(envelope), MinEnvelopeSize)
	}
	iv, sealed := envelope[:IVSize], envelope[IVSize:]
	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}
