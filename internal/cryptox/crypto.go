// Package cryptox implements the cryptographic primitives for NoteLock:
// user-key generation, password-based key derivation, and AES-GCM
// encryption of individual string fields into envelope strings.
//
// Every encrypted value (note fields, list names, and the wrapped user key
// itself) uses the same envelope format:
//
//	base64(iv) ":" base64(ciphertext||tag)
//
// A fresh random 12-byte IV is generated per call. IV freshness is the only
// reuse protection, since the user key is long-lived.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLength is the length of the user key in bytes (AES-256).
	KeyLength = 32

	// SaltLength is the length of the key-wrapping salt in bytes.
	SaltLength = 16

	// IVLength is the AES-GCM nonce length in bytes.
	IVLength = 12

	// PBKDF2Iterations is the PBKDF2-SHA256 iteration count used to derive
	// the wrapping key from the account password.
	PBKDF2Iterations = 100_000
)

var (
	// ErrInvalidKeyLength indicates a key that is not KeyLength bytes.
	ErrInvalidKeyLength = errors.New("cryptox: invalid key length")

	// ErrInvalidEnvelope indicates a malformed or truncated envelope string.
	ErrInvalidEnvelope = errors.New("cryptox: invalid envelope")

	// ErrDecryptionFailed indicates an authentication-tag mismatch: wrong
	// key, or tampered IV/ciphertext. Callers must not distinguish the cases.
	ErrDecryptionFailed = errors.New("cryptox: decryption failed")
)

// GenerateUserKey returns a new random 256-bit AES key. It fails only when
// the platform CSPRNG is unavailable.
func GenerateUserKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating user key: %w", err)
	}
	return key, nil
}

// GenerateSalt returns a new random key-wrapping salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// DerivePasswordKey derives a 256-bit AES key from the password and salt
// using PBKDF2-SHA256. The derivation is deterministic: the same inputs
// always yield the same key, which is what lets every login re-create the
// wrapping key without the password ever being stored.
func DerivePasswordKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, PBKDF2Iterations, KeyLength, sha256.New)
}

// ExportKey converts a raw key to its transportable Base64 form.
func ExportKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportKey converts the Base64 form produced by ExportKey back into a raw
// key, validating its length.
func ImportKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyLength, err)
	}
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
