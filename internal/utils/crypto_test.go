package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("secret")
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	k2, err := DeriveKey("secret")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveKey("other")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)

	sealed, err := Encrypt("uXyz-token", key)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "uXyz-token")

	again, err := Encrypt("uXyz-token", key)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "uXyz-token", plain)
}

func TestDecryptFailures(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)
	other, err := DeriveKey("other")
	require.NoError(t, err)

	sealed, err := Encrypt("token", key)
	require.NoError(t, err)

	_, err = Decrypt(sealed, other)
	assert.Error(t, err)

	tampered := strings.Repeat("0", 2) + sealed[2:]
	if tampered != sealed {
		_, err = Decrypt(tampered, key)
		assert.Error(t, err)
	}

	_, err = Decrypt("", key)
	assert.Error(t, err)
	_, err = Decrypt("zz", key)
	assert.Error(t, err)
	_, err = Decrypt("00ff", key)
	assert.Error(t, err)
	_, err = Encrypt("", key)
	assert.Error(t, err)
	_, err = Encrypt("x", []byte("short"))
	assert.Error(t, err)
}
