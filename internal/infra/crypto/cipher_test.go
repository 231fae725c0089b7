package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "0123456789abcdef0123456789abcdef"

func TestAESCipher_RoundTrip(t *testing.T) {
	c, err := NewAESCipher(testMasterKey, "salt")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("postgres://user:secret@db/app")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "secret")

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "postgres://user:secret@db/app", plaintext)
}

func TestAESCipher_EmptyPlaintext(t *testing.T) {
	c, err := NewAESCipher(testMasterKey, "")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("")
	require.NoError(t, err)
	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestAESCipher_NonceIsRandom(t *testing.T) {
	c, err := NewAESCipher(testMasterKey, "salt")
	require.NoError(t, err)

	a, _ := c.Encrypt("value")
	b, _ := c.Encrypt("value")
	assert.NotEqual(t, a, b)
}

func TestAESCipher_WrongKeyOrSalt(t *testing.T) {
	c1, _ := NewAESCipher(testMasterKey, "salt")
	c2, _ := NewAESCipher(testMasterKey, "other-salt")
	c3, _ := NewAESCipher("fedcba9876543210fedcba9876543210", "salt")

	ciphertext, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(ciphertext)
	assert.Error(t, err)
	_, err = c3.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESCipher_Tampered(t *testing.T) {
	c, _ := NewAESCipher(testMasterKey, "salt")
	ciphertext, _ := c.Encrypt("data")

	_, err := c.Decrypt(ciphertext[:len(ciphertext)-4] + "AAAA")
	assert.Error(t, err)

	_, err = c.Decrypt("not base64 !!")
	assert.Error(t, err)

	_, err = c.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestNewAESCipher_ShortKey(t *testing.T) {
	_, err := NewAESCipher("short", "salt")
	assert.ErrorIs(t, err, ErrMasterKeyTooShort)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1, err := DeriveKey([]byte(testMasterKey), []byte("salt"))
	require.NoError(t, err)
	k2, _ := DeriveKey([]byte(testMasterKey), []byte("salt"))
	k3, _ := DeriveKey([]byte(testMasterKey), []byte("pepper"))

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
