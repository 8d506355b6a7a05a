package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipherFromHex(testKeyHex)
	require.NoError(t, err)
	return c
}

func TestParseHexKey(t *testing.T) {
	key, err := ParseHexKey(testKeyHex)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = ParseHexKey(testKeyHex[:62])
	assert.Error(t, err, "short key must be rejected")

	_, err = ParseHexKey(testKeyHex + "00")
	assert.Error(t, err, "long key must be rejected")

	_, err = ParseHexKey(strings.Repeat("zz", 32))
	assert.Error(t, err, "non-hex key must be rejected")
}

func TestNewCipher_KeyLength(t *testing.T) {
	_, err := NewCipher(make([]byte, 16))
	assert.Error(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{
		"",
		"secret1",
		"héllo wörld",
		"日本語のシークレット",
		"emoji 🔐🌍",
		strings.Repeat("x", 4096),
	} {
		envelope, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.Len(t, envelope, IVSize+len(plaintext)+TagSize)

		got, err := c.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b), "two encryptions of the same plaintext must differ")
	assert.False(t, bytes.Equal(a[:IVSize], b[:IVSize]), "IVs must differ")
}

func TestDecrypt_TamperDetection(t *testing.T) {
	c := newTestCipher(t)

	envelope, err := c.Encrypt("tamper me")
	require.NoError(t, err)

	// One position in each region: IV, ciphertext, tag.
	positions := map[string]int{
		"iv":         0,
		"ciphertext": IVSize + 2,
		"tag":        len(envelope) - 1,
	}
	for region, pos := range positions {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), envelope...)
			tampered[pos] ^= 1 << bit

			_, err := c.Decrypt(tampered)
			assert.Truef(t, errors.Is(err, ErrDecryption), "flip bit %d in %s: err = %v", bit, region, err)
		}
	}
}

func TestDecrypt_EveryBitFlipFails(t *testing.T) {
	c := newTestCipher(t)

	envelope, err := c.Encrypt("ab")
	require.NoError(t, err)

	for i := range envelope {
		tampered := append([]byte(nil), envelope...)
		tampered[i] ^= 0x80
		_, err := c.Decrypt(tampered)
		require.ErrorIsf(t, err, ErrDecryption, "byte %d", i)
	}
}

func TestDecrypt_MinimumLength(t *testing.T) {
	c := newTestCipher(t)

	for n := 0; n < MinEnvelopeSize; n++ {
		_, err := c.Decrypt(make([]byte, n))
		require.ErrorIsf(t, err, ErrDecryption, "length %d", n)
		assert.Contains(t, err.Error(), "minimum")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c := newTestCipher(t)
	other, err := NewCipherFromHex(strings.Repeat("ab", 32))
	require.NoError(t, err)

	envelope, err := c.Encrypt("secret1")
	require.NoError(t, err)

	_, err = other.Decrypt(envelope)
	assert.ErrorIs(t, err, ErrDecryption)
}
