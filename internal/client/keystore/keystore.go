// Package keystore is the process-local persistent store for the unwrapped
// user key and the session refresh token. It survives restarts and is never
// synced anywhere. Any process able to read the backing file can read the
// raw key; that trust-on-first-use tradeoff is what buys password-free
// session restore.
package keystore

import "context"

// UserKeyEntry is the name under which the exported user key is stored.
const UserKeyEntry = "userKey"

// SessionTokenEntry holds the refresh token of the last session, so the
// next run can resume it without a password alongside the cached key.
const SessionTokenEntry = "sessionToken"

// KeyStore is a tiny named-value store. Absent names yield ("", nil).
type KeyStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}
