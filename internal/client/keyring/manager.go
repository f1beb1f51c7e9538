// Package keyring orchestrates the lifecycle of the per-user content key:
// generated and wrapped at signup, unwrapped at sign-in, cached in the local
// key store for remembered sessions, and erased at sign-out.
//
// The wrapping key is derived from the account password and a per-user
// random salt; the password itself is never stored anywhere. There is no
// recovery path: losing the password loses the data.
package keyring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/dbrusnev/notelock/internal/client/keystore"
	"github.com/dbrusnev/notelock/internal/client/models"
	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/cryptox"
	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
)

// Manager owns the in-memory user key and keeps it in lockstep with the
// local key store: save and clear always touch both, never one without the
// other.
type Manager struct {
	store remote.Store
	auth  remote.Auth
	local keystore.KeyStore
	log   logging.Logger

	mu  sync.Mutex
	key []byte
}

func NewManager(store remote.Store, auth remote.Auth, local keystore.KeyStore, log logging.Logger) *Manager {
	return &Manager{
		store: store,
		auth:  auth,
		local: local,
		log:   log.With("module", "keyring"),
	}
}

// Key returns the unwrapped user key, or nil when no session is active.
func (m *Manager) Key() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// HasKey reports whether an unwrapped key is available.
func (m *Manager) HasKey() bool {
	return m.Key() != nil
}

// SignUp creates the account and establishes its key material: a fresh user
// key is generated, wrapped under a key derived from password and a new
// random salt, and three writes are issued as one logical operation: the
// wrapped-key record remotely, the raw key locally, and the user's default
// list (its name encrypted to the sentinel). If any write fails the signup
// reports failure; already-applied writes are not compensated.
func (m *Manager) SignUp(ctx context.Context, email string, password []byte) (*remote.User, error) {
	user, err := m.auth.SignUp(ctx, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	key, err := cryptox.GenerateUserKey()
	if err != nil {
		return nil, err
	}
	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return nil, err
	}

	wrapKey := cryptox.DerivePasswordKey(password, salt)
	defer common.WipeByteArray(wrapKey)

	wrapped, err := cryptox.EncryptWithKey(cryptox.ExportKey(key), wrapKey)
	if err != nil {
		return nil, fmt.Errorf("wrapping user key: %w", err)
	}

	if err := m.store.Set(ctx, remote.KeysCollection, user.ID, remote.Document{
		"encryptedUserKey": wrapped,
		"salt":             base64.StdEncoding.EncodeToString(salt),
	}, false); err != nil {
		return nil, fmt.Errorf("storing wrapped key: %w", err)
	}

	if err := m.cache(ctx, key); err != nil {
		return nil, err
	}

	defaultName, err := cryptox.EncryptWithKey(models.DefaultListSentinel, key)
	if err != nil {
		return nil, fmt.Errorf("encrypting default list name: %w", err)
	}
	if _, err := m.store.Add(ctx, remote.ListsCollection, remote.Document{
		"name":   defaultName,
		"userId": user.ID,
	}); err != nil {
		return nil, fmt.Errorf("creating default list: %w", err)
	}

	m.log.Info(ctx, "signup complete", "user", user.ID)
	return user, nil
}

// SignIn authenticates, fetches the wrapped-key record, re-derives the
// wrapping key from password and the stored salt, and unwraps the user key.
// A wrong password surfaces as a decryption failure and is reported as
// invalid credentials, indistinguishable from a corrupted envelope; in that
// case no key is cached.
func (m *Manager) SignIn(ctx context.Context, email string, password []byte) (*remote.User, error) {
	user, err := m.auth.SignIn(ctx, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	doc, err := m.store.Get(ctx, remote.KeysCollection, user.ID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, fmt.Errorf("%w: no key record", common.ErrInvalidData)
		}
		return nil, fmt.Errorf("fetching wrapped key: %w", err)
	}

	wrapped, salt, err := parseWrappedKeyRecord(doc)
	if err != nil {
		return nil, err
	}

	wrapKey := cryptox.DerivePasswordKey(password, salt)
	defer common.WipeByteArray(wrapKey)

	exported, err := cryptox.DecryptWithKey(wrapped, wrapKey)
	if err != nil {
		m.log.Warn(ctx, "key unwrap failed", "user", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	key, err := cryptox.ImportKey(exported)
	if err != nil {
		return nil, common.ErrInvalidCredentials
	}

	if err := m.cache(ctx, key); err != nil {
		return nil, err
	}

	m.log.Info(ctx, "signin complete", "user", user.ID)
	return user, nil
}

// ChangePassword rewraps the current user key under newPassword and a fresh
// salt, replaces the remote wrapped-key record, and then rotates the login
// credential. The content key itself never changes, so existing records stay
// readable. Requires an active session with an unwrapped key.
func (m *Manager) ChangePassword(ctx context.Context, newPassword []byte) error {
	key := m.Key()
	if key == nil {
		return fmt.Errorf("%w: no active session", common.ErrInvalidData)
	}
	user := m.auth.CurrentUser()
	if user == nil {
		return fmt.Errorf("%w: no active session", common.ErrInvalidData)
	}

	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return err
	}

	wrapKey := cryptox.DerivePasswordKey(newPassword, salt)
	defer common.WipeByteArray(wrapKey)

	wrapped, err := cryptox.EncryptWithKey(cryptox.ExportKey(key), wrapKey)
	if err != nil {
		return fmt.Errorf("wrapping user key: %w", err)
	}

	if err := m.store.Set(ctx, remote.KeysCollection, user.ID, remote.Document{
		"encryptedUserKey": wrapped,
		"salt":             base64.StdEncoding.EncodeToString(salt),
	}, false); err != nil {
		return fmt.Errorf("storing wrapped key: %w", err)
	}

	if err := m.auth.UpdatePassword(ctx, string(newPassword)); err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}

	m.log.Info(ctx, "password changed", "user", user.ID)
	return nil
}

// Restore attempts to load a previously cached user key without a password
// (stay-logged-in). Returns false when no usable key is cached.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	exported, err := m.local.Get(ctx, keystore.UserKeyEntry)
	if err != nil {
		return false, fmt.Errorf("reading local key store: %w", err)
	}
	if exported == "" {
		return false, nil
	}

	key, err := cryptox.ImportKey(exported)
	if err != nil {
		// local store corruption: drop the entry rather than keep failing
		m.log.Warn(ctx, "cached key unusable, clearing", "err", err)
		_ = m.local.Delete(ctx, keystore.UserKeyEntry)
		return false, nil
	}

	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	return true, nil
}

// SignOut erases the in-memory key and the local store entry together and
// signs out of the auth provider.
func (m *Manager) SignOut(ctx context.Context) error {
	m.Clear(ctx)
	return m.auth.SignOut(ctx)
}

// Clear wipes local key material without touching the auth session. Used by
// the session gate when the provider itself reports a sign-out.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	common.WipeByteArray(m.key)
	m.key = nil
	m.mu.Unlock()

	if err := m.local.Delete(ctx, keystore.UserKeyEntry); err != nil {
		m.log.Error(ctx, "clearing local key store", "err", err)
	}
}

// cache stores key both in memory and in the local key store.
func (m *Manager) cache(ctx context.Context, key []byte) error {
	if err := m.local.Set(ctx, keystore.UserKeyEntry, cryptox.ExportKey(key)); err != nil {
		return fmt.Errorf("persisting user key: %w", err)
	}
	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	return nil
}

func parseWrappedKeyRecord(doc remote.Document) (wrapped string, salt []byte, err error) {
	wrapped, ok := doc["encryptedUserKey"].(string)
	if !ok || wrapped == "" {
		return "", nil, fmt.Errorf("%w: malformed key record", common.ErrInvalidData)
	}
	saltB64, ok := doc["salt"].(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed key record", common.ErrInvalidData)
	}
	salt, err = base64.StdEncoding.DecodeString(saltB64)
	if err != nil || len(salt) != cryptox.SaltLength {
		return "", nil, fmt.Errorf("%w: malformed key record", common.ErrInvalidData)
	}
	return wrapped, salt, nil
}
