package cryptox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateUserKey()
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := mustKey(t)

	plaintexts := []string{
		"",
		"a",
		"shopping list",
		"multi\nline\ncontent with unicode: ключ, 鍵, 🔑",
		strings.Repeat("x", 64*1024),
	}

	for _, p := range plaintexts {
		env, err := EncryptWithKey(p, key)
		require.NoError(t, err)

		got, err := DecryptWithKey(env, key)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEncrypt_EnvelopeFormat(t *testing.T) {
	key := mustKey(t)

	env, err := EncryptWithKey("hello", key)
	require.NoError(t, err)

	parts := strings.SplitN(env, ":", 2)
	require.Len(t, parts, 2)

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, IVLength)

	ct, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	// ciphertext carries the 16-byte GCM tag
	assert.Equal(t, len("hello")+16, len(ct))
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	key := mustKey(t)

	env1, err := EncryptWithKey("same plaintext", key)
	require.NoError(t, err)
	env2, err := EncryptWithKey("same plaintext", key)
	require.NoError(t, err)

	assert.NotEqual(t, env1, env2)
}

func TestDecrypt_WrongKeyRejected(t *testing.T) {
	k1 := mustKey(t)
	k2 := mustKey(t)

	env, err := EncryptWithKey("secret", k1)
	require.NoError(t, err)

	_, err = DecryptWithKey(env, k2)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_TamperedCiphertextRejected(t *testing.T) {
	key := mustKey(t)

	env, err := EncryptWithKey("secret", key)
	require.NoError(t, err)

	ivPart, ctPart, ok := strings.Cut(env, ":")
	require.True(t, ok)

	ct, err := base64.StdEncoding.DecodeString(ctPart)
	require.NoError(t, err)
	ct[0] ^= 0xFF
	tampered := ivPart + ":" + base64.StdEncoding.EncodeToString(ct)

	_, err = DecryptWithKey(tampered, key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_MalformedEnvelope(t *testing.T) {
	key := mustKey(t)

	cases := []string{
		"",
		"no-delimiter",
		"!!!:also-not-base64",
		base64.StdEncoding.EncodeToString([]byte("bad-iv-len")) + ":" + base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")),
		base64.StdEncoding.EncodeToString(make([]byte, IVLength)) + ":" + base64.StdEncoding.EncodeToString([]byte("short")),
	}

	for _, c := range cases {
		_, err := DecryptWithKey(c, key)
		assert.ErrorIs(t, err, ErrInvalidEnvelope, "envelope %q", c)
	}
}

func TestEncrypt_BadKeyLength(t *testing.T) {
	_, err := EncryptWithKey("x", []byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
