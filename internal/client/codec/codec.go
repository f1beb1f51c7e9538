// Package codec transforms records between their decrypted in-memory shape
// and the envelope-encrypted documents persisted remotely. Encryption is
// field-by-field against an explicit allowlist; everything not listed passes
// through untouched.
package codec

import (
	"errors"
	"fmt"

	"github.com/dbrusnev/notelock/internal/cryptox"
	"github.com/dbrusnev/notelock/internal/remote"
)

// ErrFieldNotString is returned when a listed field is absent or holds a
// non-string value. Listing such a field is a caller error; it is reported
// immediately rather than silently skipped.
var ErrFieldNotString = errors.New("codec: listed field is not a string")

// EncryptFields returns a copy of doc in which each named field has been
// replaced by its envelope encryption under key. All other fields are
// copied as-is.
func EncryptFields(doc remote.Document, key []byte, fields ...string) (remote.Document, error) {
	return transformFields(doc, fields, func(plaintext string) (string, error) {
		return cryptox.EncryptWithKey(plaintext, key)
	})
}

// DecryptFields is the inverse of EncryptFields: each named field is parsed
// as an envelope and decrypted under key. Decryption failure of any listed
// field fails the whole record.
func DecryptFields(doc remote.Document, key []byte, fields ...string) (remote.Document, error) {
	return transformFields(doc, fields, func(envelope string) (string, error) {
		return cryptox.DecryptWithKey(envelope, key)
	})
}

func transformFields(doc remote.Document, fields []string, fn func(string) (string, error)) (remote.Document, error) {
	out := make(remote.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}

	for _, name := range fields {
		v, ok := doc[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is missing", ErrFieldNotString, name)
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T", ErrFieldNotString, name, v)
		}
		transformed, err := fn(s)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = transformed
	}

	return out, nil
}
