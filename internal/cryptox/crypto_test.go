package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUserKey_LengthAndEntropy(t *testing.T) {
	k1, err := GenerateUserKey()
	require.NoError(t, err)
	k2, err := GenerateUserKey()
	require.NoError(t, err)

	assert.Len(t, k1, KeyLength)
	assert.Len(t, k2, KeyLength)
	assert.NotEqual(t, k1, k2)
}

func TestDerivePasswordKey_Deterministic(t *testing.T) {
	password := []byte("correcthorse1")
	salt := []byte("0123456789abcdef")

	key1 := DerivePasswordKey(password, salt)
	key2 := DerivePasswordKey(password, salt)
	require.Equal(t, key1, key2)

	// keys from identical inputs must decrypt each other's ciphertexts
	env, err := EncryptWithKey("interchangeable", key1)
	require.NoError(t, err)
	got, err := DecryptWithKey(env, key2)
	require.NoError(t, err)
	assert.Equal(t, "interchangeable", got)
}

func TestDerivePasswordKey_DifferentInputs(t *testing.T) {
	password := []byte("correcthorse1")
	salt1 := []byte("salt-number-one!")
	salt2 := []byte("salt-number-two!")

	k1 := DerivePasswordKey(password, salt1)
	k2 := DerivePasswordKey(password, salt2)
	assert.NotEqual(t, k1, k2)

	k3 := DerivePasswordKey([]byte("otherpassword"), salt1)
	assert.NotEqual(t, k1, k3)

	// non-interoperable: ciphertext under k1 must not open under k2
	env, err := EncryptWithKey("secret", k1)
	require.NoError(t, err)
	_, err = DecryptWithKey(env, k2)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestExportImportKey_RoundTrip(t *testing.T) {
	key, err := GenerateUserKey()
	require.NoError(t, err)

	imported, err := ImportKey(ExportKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, imported)
}

func TestImportKey_Invalid(t *testing.T) {
	_, err := ImportKey("not base64 !!!")
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	// valid base64 but wrong length
	_, err = ImportKey(ExportKey([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
