package cipher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")[:32]
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := NewWithKey(testKey())
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("hello room")
	require.NoError(t, err)
	assert.NotEqual(t, "hello room", ciphertext)

	plaintext := c.Decrypt(context.Background(), ciphertext)
	assert.Equal(t, "hello room", plaintext)
}

func TestEncrypt_ProducesDistinctCiphertextsForSameInput(t *testing.T) {
	c, err := NewWithKey(testKey())
	require.NoError(t, err)

	a, err := c.Encrypt("same message")
	require.NoError(t, err)
	b, err := c.Encrypt("same message")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "nonce must be random per call")
}

func TestDecrypt_CorruptCiphertextReturnsOriginal(t *testing.T) {
	c, err := NewWithKey(testKey())
	require.NoError(t, err)

	corrupt := "not-valid-base64-or-ciphertext!!"
	got := c.Decrypt(context.Background(), corrupt)
	assert.Equal(t, corrupt, got)
}

func TestDecrypt_WrongKeyReturnsOriginal(t *testing.T) {
	c1, err := NewWithKey(testKey())
	require.NoError(t, err)
	otherKey := []byte("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
	c2, err := NewWithKey(otherKey)
	require.NoError(t, err)

	ciphertext, err := c1.Encrypt("secret")
	require.NoError(t, err)

	got := c2.Decrypt(context.Background(), ciphertext)
	assert.Equal(t, ciphertext, got, "decrypt failure must surface original ciphertext, not error")
}

func TestNewWithKey_RejectsWrongSize(t *testing.T) {
	_, err := NewWithKey([]byte("too-short"))
	assert.Error(t, err)
}

func TestNew_GeneratesUsableCipher(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("x")
	require.NoError(t, err)
	assert.Equal(t, "x", c.Decrypt(context.Background(), ciphertext))
}

func TestEncryptNonEmpty_RejectsEmpty(t *testing.T) {
	c, err := NewWithKey(testKey())
	require.NoError(t, err)

	_, err = c.EncryptNonEmpty("")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "empty"))
}
