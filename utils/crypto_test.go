package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)

	encrypted, err := Encrypt([]byte("smtp-password"), key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "enc:"))
	assert.NotContains(t, encrypted, "smtp-password")

	plaintext, err := Decrypt(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, "smtp-password", plaintext)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	other := bytes.Repeat([]byte{0x24}, 32)

	encrypted, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Decrypt(encrypted, other)
	assert.Error(t, err)
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)

	// Legacy values stored before encryption was enabled.
	plaintext, err := Decrypt("old-plaintext-password", key)
	require.NoError(t, err)
	assert.Equal(t, "old-plaintext-password", plaintext)
}

func TestKeyLengthEnforced(t *testing.T) {
	short := []byte("too-short")

	_, err := Encrypt([]byte("x"), short)
	assert.Error(t, err)
	_, err = Decrypt("enc:abcd", short)
	assert.Error(t, err)
}

func TestEncryptIsNotDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)

	a, err := Encrypt([]byte("same input"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same input"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "a fresh nonce per call")
}
