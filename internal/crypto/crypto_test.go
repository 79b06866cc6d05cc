package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor(t *testing.T) {
	t.Run("valid key size", func(t *testing.T) {
		enc, err := NewEncryptor(make([]byte, 32))
		require.NoError(t, err)
		assert.NotNil(t, enc)
	})

	t.Run("invalid key size", func(t *testing.T) {
		enc, err := NewEncryptor(make([]byte, 16))
		assert.ErrorIs(t, err, ErrInvalidKeySize)
		assert.Nil(t, enc)
	})
}

func TestNewEncryptorFromBase64(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc, err := NewEncryptorFromBase64(key)
	require.NoError(t, err)
	assert.NotNil(t, enc)

	_, err = NewEncryptorFromBase64("not-valid-base64!!!")
	assert.Error(t, err)

	_, err = NewEncryptorFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 8)))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestNewEncryptorFromSecret(t *testing.T) {
	t.Run("empty secret", func(t *testing.T) {
		_, err := NewEncryptorFromSecret("")
		assert.ErrorIs(t, err, ErrEmptySecret)
	})

	t.Run("same secret derives same key", func(t *testing.T) {
		a, err := NewEncryptorFromSecret("correct horse battery staple")
		require.NoError(t, err)
		b, err := NewEncryptorFromSecret("correct horse battery staple")
		require.NoError(t, err)

		sealed, err := a.Encrypt("webdav-password")
		require.NoError(t, err)

		plain, err := b.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "webdav-password", plain)
	})

	t.Run("different secret cannot decrypt", func(t *testing.T) {
		a, _ := NewEncryptorFromSecret("one")
		b, _ := NewEncryptorFromSecret("two")

		sealed, err := a.Encrypt("webdav-password")
		require.NoError(t, err)

		_, err = b.Decrypt(sealed)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	enc, err := NewEncryptorFromSecret("test-secret")
	require.NoError(t, err)

	t.Run("empty string passes through", func(t *testing.T) {
		sealed, err := enc.Encrypt("")
		require.NoError(t, err)
		assert.Empty(t, sealed)

		plain, err := enc.Decrypt("")
		require.NoError(t, err)
		assert.Empty(t, plain)
	})

	t.Run("nonce differs per call", func(t *testing.T) {
		first, err := enc.Encrypt("https://dav.example.com")
		require.NoError(t, err)
		second, err := enc.Encrypt("https://dav.example.com")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("abc")))
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("tampered", func(t *testing.T) {
		sealed, err := enc.Encrypt("secret")
		require.NoError(t, err)
		raw, _ := base64.StdEncoding.DecodeString(sealed)
		raw[len(raw)-1] ^= 0xff

		_, err = enc.Decrypt(base64.StdEncoding.EncodeToString(raw))
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}
