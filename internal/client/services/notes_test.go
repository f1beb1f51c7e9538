package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbrusnev/notelock/internal/client/keyring"
	"github.com/dbrusnev/notelock/internal/client/keystore"
	"github.com/dbrusnev/notelock/internal/client/store"
	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/cryptox"
	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
	"github.com/dbrusnev/notelock/internal/remote/memstore"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

type fixture struct {
	svc    *NotesService
	remote *memstore.Store
	keys   *keyring.Manager
	cache  *store.ContentStore
	user   *remote.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rs := memstore.NewStore()
	auth := memstore.NewAuth()
	t.Cleanup(auth.Close)

	log := testLogger()
	keys := keyring.NewManager(rs, auth, keystore.NewMemory(), log)
	user, err := keys.SignUp(context.Background(), "alice@example.com", []byte("correcthorse1"))
	require.NoError(t, err)

	cache := store.New()
	return &fixture{
		svc:    NewNotesService(rs, keys, cache, log),
		remote: rs,
		keys:   keys,
		cache:  cache,
		user:   user,
	}
}

func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Refresh(context.Background(), f.user.ID))
}

func TestRefresh_PopulatesDefaultList(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	def, ok := f.cache.DefaultList()
	require.True(t, ok)
	assert.True(t, def.IsDefault())
	assert.True(t, f.cache.Populated())
}

func TestRefresh_NoopWhenPopulated(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "a", "b", "")
	require.NoError(t, err)

	// a second refresh must not clobber the cached state
	f.refresh(t)
	_, ok := f.cache.NoteByID(note.ID)
	assert.True(t, ok)
	assert.Len(t, f.cache.Notes(), 1)
}

func TestRefresh_DropsUndecodableRecords(t *testing.T) {
	f := newFixture(t)

	_, err := f.remote.Add(context.Background(), remote.NotesCollection, remote.Document{
		"userId":    f.user.ID,
		"title":     "not-an-envelope",
		"content":   "garbage",
		"listId":    "garbage",
		"createdAt": remote.ServerTimestamp,
	})
	require.NoError(t, err)

	f.refresh(t)
	assert.Empty(t, f.cache.Notes())
	assert.True(t, f.cache.Populated())
}

func TestAddNote_DefaultList(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "groceries", "milk, eggs", "")
	require.NoError(t, err)
	assert.Equal(t, "groceries", note.Title)
	assert.Equal(t, "milk, eggs", note.Content)
	assert.False(t, note.CreatedAt.IsZero())

	def, _ := f.cache.DefaultList()
	assert.Equal(t, def.ID, note.ListID)

	// stored ciphertext must not contain the plaintext
	doc, err := f.remote.Get(context.Background(), remote.NotesCollection, note.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "groceries", doc["title"])
	assert.NotEqual(t, "milk, eggs", doc["content"])
}

func TestAddNote_CreatesNamedList(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "work")
	require.NoError(t, err)

	list, ok := f.cache.ListByID(note.ListID)
	require.True(t, ok)
	assert.Equal(t, "work", list.Name)

	// a second note with the same name reuses the list
	note2, err := f.svc.AddNote(context.Background(), f.user.ID, "t2", "c2", "work")
	require.NoError(t, err)
	assert.Equal(t, note.ListID, note2.ListID)
	assert.Len(t, f.cache.Lists(), 2)
}

func TestAddNote_EmptyTitleAndContent(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "", "some body", "")
	require.NoError(t, err)
	assert.Empty(t, note.Title)

	// the note stays visible after a cold reload, not just in the warm cache
	f.cache.Purge(true)
	f.refresh(t)
	got, ok := f.cache.NoteByID(note.ID)
	require.True(t, ok)
	assert.Empty(t, got.Title)
	assert.Equal(t, "some body", got.Content)

	_, err = f.svc.EditNote(context.Background(), f.user.ID, note.ID, "", "", "")
	require.NoError(t, err)
	got, ok = f.cache.NoteByID(note.ID)
	require.True(t, ok)
	assert.Empty(t, got.Content)
}

func TestAddNote_WithoutKey(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)
	require.NoError(t, f.keys.SignOut(context.Background()))

	_, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestEditNote_MoveEmptiesListCascades(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "work")
	require.NoError(t, err)
	workID := note.ListID

	edited, err := f.svc.EditNote(context.Background(), f.user.ID, note.ID, "t2", "c2", "")
	require.NoError(t, err)
	assert.Equal(t, "t2", edited.Title)
	assert.False(t, edited.EditedAt.IsZero())

	_, ok := f.cache.ListByID(workID)
	assert.False(t, ok)
	_, err = f.remote.Get(context.Background(), remote.ListsCollection, workID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestEditNote_Unknown(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	_, err := f.svc.EditNote(context.Background(), f.user.ID, "nope", "t", "c", "")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestDeleteNote_CascadesEmptiedList(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "work")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteNote(context.Background(), note.ID))

	_, err = f.remote.Get(context.Background(), remote.NotesCollection, note.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	_, err = f.remote.Get(context.Background(), remote.ListsCollection, note.ListID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestDeleteNote_DefaultListSurvives(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteNote(context.Background(), note.ID))

	def, ok := f.cache.DefaultList()
	require.True(t, ok)
	_, err = f.remote.Get(context.Background(), remote.ListsCollection, def.ID)
	assert.NoError(t, err)
}

func TestRenameList(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "work")
	require.NoError(t, err)

	require.NoError(t, f.svc.RenameList(context.Background(), note.ListID, "projects"))
	list, _ := f.cache.ListByID(note.ListID)
	assert.Equal(t, "projects", list.Name)

	// remote record re-encrypted with the new name
	key := f.keys.Key()
	doc, err := f.remote.Get(context.Background(), remote.ListsCollection, note.ListID)
	require.NoError(t, err)
	decoded, err := NewNotesService(f.remote, f.keys, f.cache, testLogger()).decodeList(doc, key)
	require.NoError(t, err)
	assert.Equal(t, "projects", decoded.Name)
}

func TestRenameList_Taken(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	n1, err := f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "work")
	require.NoError(t, err)
	_, err = f.svc.AddNote(context.Background(), f.user.ID, "t", "c", "home")
	require.NoError(t, err)

	err = f.svc.RenameList(context.Background(), n1.ListID, "home")
	assert.ErrorIs(t, err, ErrListNameTaken)
}

func TestRenameList_DefaultRefused(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	def, _ := f.cache.DefaultList()
	assert.Error(t, f.svc.RenameList(context.Background(), def.ID, "anything"))
}

func TestDeleteList_RemovesNotesAndRecord(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	n1, err := f.svc.AddNote(context.Background(), f.user.ID, "a", "1", "work")
	require.NoError(t, err)
	n2, err := f.svc.AddNote(context.Background(), f.user.ID, "b", "2", "work")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteList(context.Background(), n1.ListID))

	for _, id := range []string{n1.ID, n2.ID} {
		_, err := f.remote.Get(context.Background(), remote.NotesCollection, id)
		assert.ErrorIs(t, err, remote.ErrNotFound)
	}
	_, err = f.remote.Get(context.Background(), remote.ListsCollection, n1.ListID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	_, ok := f.cache.ListByID(n1.ListID)
	assert.False(t, ok)
}

func TestDeleteList_DefaultKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	note, err := f.svc.AddNote(context.Background(), f.user.ID, "a", "1", "")
	require.NoError(t, err)
	def, _ := f.cache.DefaultList()

	require.NoError(t, f.svc.DeleteList(context.Background(), def.ID))

	_, err = f.remote.Get(context.Background(), remote.NotesCollection, note.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	_, err = f.remote.Get(context.Background(), remote.ListsCollection, def.ID)
	assert.NoError(t, err)
	got, ok := f.cache.DefaultList()
	require.True(t, ok)
	assert.Equal(t, def.ID, got.ID)
}

func TestDeleteAllData_KeepsDefaultList(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	_, err := f.svc.AddNote(context.Background(), f.user.ID, "a", "1", "work")
	require.NoError(t, err)
	_, err = f.svc.AddNote(context.Background(), f.user.ID, "b", "2", "")
	require.NoError(t, err)
	def, _ := f.cache.DefaultList()

	require.NoError(t, f.svc.DeleteAllData(context.Background(), f.user.ID))

	docs, err := f.remote.Query(context.Background(), remote.NotesCollection, remote.Where("userId", "==", f.user.ID))
	require.NoError(t, err)
	assert.Empty(t, docs)

	lists, err := f.remote.Query(context.Background(), remote.ListsCollection, remote.Where("userId", "==", f.user.ID))
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, def.ID, lists[0]["id"])

	assert.Empty(t, f.cache.Notes())
	assert.True(t, f.cache.Populated())
}

func TestPurgeAccountData_RemovesEverything(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	_, err := f.svc.AddNote(context.Background(), f.user.ID, "a", "1", "work")
	require.NoError(t, err)

	require.NoError(t, f.svc.PurgeAccountData(context.Background(), f.user.ID))

	lists, err := f.remote.Query(context.Background(), remote.ListsCollection, remote.Where("userId", "==", f.user.ID))
	require.NoError(t, err)
	assert.Empty(t, lists)

	_, err = f.remote.Get(context.Background(), remote.KeysCollection, f.user.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.False(t, f.cache.Populated())
}

func TestReverseNotes(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	n1, err := f.svc.AddNote(context.Background(), f.user.ID, "a", "1", "")
	require.NoError(t, err)
	n2, err := f.svc.AddNote(context.Background(), f.user.ID, "b", "2", "")
	require.NoError(t, err)

	before := f.cache.Notes()
	require.Equal(t, []string{n2.ID, n1.ID}, []string{before[0].ID, before[1].ID})

	f.svc.ReverseNotes()
	after := f.cache.Notes()
	assert.Equal(t, []string{n1.ID, n2.ID}, []string{after[0].ID, after[1].ID})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Invalid credentials", UserMessage(fmt.Errorf("sign in: %w", common.ErrInvalidCredentials)))
	assert.Equal(t, "Invalid data", UserMessage(cryptox.ErrDecryptionFailed))
	assert.Equal(t, "A list with this name already exists", UserMessage(ErrListNameTaken))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
