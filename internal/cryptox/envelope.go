package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// EncryptWithKey encrypts plaintext under key with AES-GCM and returns the
// envelope string base64(iv):base64(ciphertext||tag). A fresh random IV is
// generated on every call, so encrypting the same plaintext twice never
// yields the same envelope.
func EncryptWithKey(plaintext string, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	ciphertext := aead.Seal(nil, iv, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(iv) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptWithKey splits and decodes an envelope produced by EncryptWithKey
// and decrypts it under key. A wrong key, or any tampering with the IV or
// ciphertext, fails the authentication-tag check and returns
// ErrDecryptionFailed; this is the mechanism that implicitly validates a
// correct password at login.
func DecryptWithKey(envelope string, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	ivPart, ctPart, ok := strings.Cut(envelope, ":")
	if !ok {
		return "", ErrInvalidEnvelope
	}

	iv, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil || len(iv) != IVLength {
		return "", ErrInvalidEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ctPart)
	if err != nil || len(ciphertext) < aead.Overhead() {
		return "", ErrInvalidEnvelope
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
