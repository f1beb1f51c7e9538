package keyring

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbrusnev/notelock/internal/client/keystore"
	"github.com/dbrusnev/notelock/internal/client/models"
	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/cryptox"
	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
	"github.com/dbrusnev/notelock/internal/remote/memstore"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func newFixture(t *testing.T) (*Manager, *memstore.Store, *memstore.Auth, *keystore.Memory) {
	t.Helper()
	store := memstore.NewStore()
	auth := memstore.NewAuth()
	t.Cleanup(auth.Close)
	local := keystore.NewMemory()
	return NewManager(store, auth, local, testLogger()), store, auth, local
}

func TestSignUp_CreatesAllKeyMaterial(t *testing.T) {
	m, store, _, local := newFixture(t)
	ctx := context.Background()

	user, err := m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)
	require.True(t, m.HasKey())

	// wrapped-key record with a 16-byte salt
	doc, err := store.Get(ctx, remote.KeysCollection, user.ID)
	require.NoError(t, err)
	salt, err := base64.StdEncoding.DecodeString(doc["salt"].(string))
	require.NoError(t, err)
	assert.Len(t, salt, cryptox.SaltLength)
	assert.NotEmpty(t, doc["encryptedUserKey"])

	// raw key cached locally
	cached, err := local.Get(ctx, keystore.UserKeyEntry)
	require.NoError(t, err)
	assert.Equal(t, cryptox.ExportKey(m.Key()), cached)

	// default list created with the sentinel-encrypted name
	lists, err := store.Query(ctx, remote.ListsCollection, remote.Where("userId", "==", user.ID))
	require.NoError(t, err)
	require.Len(t, lists, 1)
	name, err := cryptox.DecryptWithKey(lists[0]["name"].(string), m.Key())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultListSentinel, name)
}

func TestSignIn_RecoversKeyThatDecryptsPostSignupData(t *testing.T) {
	m, store, auth, local := newFixture(t)
	ctx := context.Background()

	_, err := m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)

	// encrypt a note right after signup
	env, err := cryptox.EncryptWithKey("the content", m.Key())
	require.NoError(t, err)

	// fresh manager, same backing services: a new device signing in
	require.NoError(t, auth.SignOut(ctx))
	m2 := NewManager(store, auth, local, testLogger())

	_, err = m2.SignIn(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)

	got, err := cryptox.DecryptWithKey(env, m2.Key())
	require.NoError(t, err)
	assert.Equal(t, "the content", got)
}

func TestSignIn_WrongPassword(t *testing.T) {
	m, store, auth, _ := newFixture(t)
	ctx := context.Background()

	user, err := m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)
	require.NoError(t, auth.SignOut(ctx))

	// the auth provider rejects the wrong password outright
	m2 := NewManager(store, auth, keystore.NewMemory(), testLogger())
	_, err = m2.SignIn(ctx, "a@b.com", []byte("wrongpassword"))
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.False(t, m2.HasKey())

	// corrupt the record to reach the unwrap path with valid auth:
	// same "invalid credentials", deliberately indistinguishable
	doc, err := store.Get(ctx, remote.KeysCollection, user.ID)
	require.NoError(t, err)
	wrongSalt, err := cryptox.GenerateSalt()
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, remote.KeysCollection, user.ID, remote.Document{
		"encryptedUserKey": doc["encryptedUserKey"],
		"salt":             base64.StdEncoding.EncodeToString(wrongSalt),
	}, false))

	fresh := keystore.NewMemory()
	m3 := NewManager(store, auth, fresh, testLogger())
	_, err = m3.SignIn(ctx, "a@b.com", []byte("correcthorse1"))
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.False(t, m3.HasKey())

	// no key cached locally after a failed unwrap
	cached, err := fresh.Get(ctx, keystore.UserKeyEntry)
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestSignIn_MalformedKeyRecord(t *testing.T) {
	m, store, auth, _ := newFixture(t)
	ctx := context.Background()

	user, err := m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)
	require.NoError(t, auth.SignOut(ctx))

	require.NoError(t, store.Set(ctx, remote.KeysCollection, user.ID, remote.Document{
		"encryptedUserKey": "whatever",
	}, false))

	m2 := NewManager(store, auth, keystore.NewMemory(), testLogger())
	_, err = m2.SignIn(ctx, "a@b.com", []byte("correcthorse1"))
	assert.ErrorIs(t, err, common.ErrInvalidData)
}

func TestRestore(t *testing.T) {
	m, store, auth, local := newFixture(t)
	ctx := context.Background()

	// nothing cached yet
	ok, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)
	key := m.Key()

	// application restart: fresh manager over the same local store
	m2 := NewManager(store, auth, local, testLogger())
	ok, err = m2.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, key, m2.Key())
}

func TestRestore_CorruptEntryCleared(t *testing.T) {
	m, _, _, local := newFixture(t)
	ctx := context.Background()

	require.NoError(t, local.Set(ctx, keystore.UserKeyEntry, "garbage!!"))

	ok, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := local.Get(ctx, keystore.UserKeyEntry)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSignOut_ClearsMemoryAndLocalStore(t *testing.T) {
	m, _, auth, local := newFixture(t)
	ctx := context.Background()

	_, err := m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)

	require.NoError(t, m.SignOut(ctx))

	assert.False(t, m.HasKey())
	v, err := local.Get(ctx, keystore.UserKeyEntry)
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Nil(t, auth.CurrentUser())
}

func TestChangePassword_RewrapsWithoutChangingKey(t *testing.T) {
	m, store, auth, _ := newFixture(t)
	ctx := context.Background()

	user, err := m.SignUp(ctx, "a@b.com", []byte("correcthorse1"))
	require.NoError(t, err)
	oldKey := append([]byte(nil), m.Key()...)

	before, err := store.Get(ctx, remote.KeysCollection, user.ID)
	require.NoError(t, err)

	require.NoError(t, m.ChangePassword(ctx, []byte("freshpassword2")))

	// the wrapped record rotated, the content key did not
	after, err := store.Get(ctx, remote.KeysCollection, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before["encryptedUserKey"], after["encryptedUserKey"])
	assert.NotEqual(t, before["salt"], after["salt"])
	assert.Equal(t, oldKey, m.Key())

	// the old password no longer signs in, the new one recovers the same key
	require.NoError(t, auth.SignOut(ctx))
	m2 := NewManager(store, auth, keystore.NewMemory(), testLogger())
	_, err = m2.SignIn(ctx, "a@b.com", []byte("correcthorse1"))
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = m2.SignIn(ctx, "a@b.com", []byte("freshpassword2"))
	require.NoError(t, err)
	assert.Equal(t, oldKey, m2.Key())
}

func TestChangePassword_RequiresSession(t *testing.T) {
	m, _, _, _ := newFixture(t)
	err := m.ChangePassword(context.Background(), []byte("freshpassword2"))
	assert.Error(t, err)
}
