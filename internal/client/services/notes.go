// Package services contains the application services of the NoteLock client.
// NotesService is the write path of the data flow: user mutations are
// encrypted through the codec, written to the remote store, and then applied
// to the in-memory content store. The two effects are not transactionally
// linked; a remote failure after a local mutation is an accepted consistency
// risk, and batch deletes are best-effort with no rollback.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbrusnev/notelock/internal/client/codec"
	"github.com/dbrusnev/notelock/internal/client/keyring"
	"github.com/dbrusnev/notelock/internal/client/models"
	"github.com/dbrusnev/notelock/internal/client/store"
	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
)

type NotesService struct {
	remote remote.Store
	keys   *keyring.Manager
	cache  *store.ContentStore
	log    logging.Logger
}

func NewNotesService(rs remote.Store, keys *keyring.Manager, cache *store.ContentStore, log logging.Logger) *NotesService {
	return &NotesService{
		remote: rs,
		keys:   keys,
		cache:  cache,
		log:    log.With("module", "notes"),
	}
}

// Refresh populates the content store with the user's decrypted lists and
// notes. It is a no-op when the store is already populated for this session.
// Records that fail decryption or shape validation are logged and dropped,
// never fatal for the whole fetch.
func (s *NotesService) Refresh(ctx context.Context, userID string) error {
	if s.cache.Populated() {
		return nil
	}
	key := s.keys.Key()
	if key == nil {
		return ErrNoKey
	}

	listDocs, err := s.remote.Query(ctx, remote.ListsCollection, remote.Where("userId", "==", userID))
	if err != nil {
		return fmt.Errorf("fetching lists: %w", err)
	}
	noteDocs, err := s.remote.Query(ctx, remote.NotesCollection, remote.Where("userId", "==", userID))
	if err != nil {
		return fmt.Errorf("fetching notes: %w", err)
	}

	notesByList := make(map[string][]models.Note)
	for _, doc := range noteDocs {
		note, err := s.decodeNote(doc, key)
		if err != nil {
			s.log.Warn(ctx, "dropping undecodable note", "id", doc["id"], "err", err)
			continue
		}
		notesByList[note.ListID] = append(notesByList[note.ListID], note)
	}

	for _, doc := range listDocs {
		list, err := s.decodeList(doc, key)
		if err != nil {
			s.log.Warn(ctx, "dropping undecodable list", "id", doc["id"], "err", err)
			continue
		}
		s.cache.AddList(list, notesByList[list.ID])
	}

	s.log.Debug(ctx, "store populated", "lists", len(listDocs), "notes", len(noteDocs))
	return nil
}

// AddNote encrypts and persists a new note, creating the target list first
// when listName does not exist yet, then applies the result to the cache.
func (s *NotesService) AddNote(ctx context.Context, userID, title, content, listName string) (models.Note, error) {
	key := s.keys.Key()
	if key == nil {
		return models.Note{}, ErrNoKey
	}

	list, isNew, err := s.resolveList(ctx, userID, listName, key)
	if err != nil {
		return models.Note{}, err
	}

	fields, err := codec.EncryptFields(remote.Document{
		"title":   title,
		"content": content,
		"listId":  list.ID,
	}, key, models.NoteEncryptedFields...)
	if err != nil {
		return models.Note{}, err
	}
	fields["userId"] = userID
	fields["createdAt"] = remote.ServerTimestamp

	id, err := s.remote.Add(ctx, remote.NotesCollection, fields)
	if err != nil {
		return models.Note{}, fmt.Errorf("storing note: %w", err)
	}

	// re-read for the server-assigned timestamp
	stored, err := s.remote.Get(ctx, remote.NotesCollection, id)
	if err != nil {
		return models.Note{}, fmt.Errorf("reading back note: %w", err)
	}
	note, err := s.decodeNote(stored, key)
	if err != nil {
		return models.Note{}, err
	}

	if isNew {
		s.cache.AddNote(note, &list)
	} else {
		s.cache.AddNote(note, nil)
	}
	return note, nil
}

// EditNote re-encrypts and persists changed fields of an existing note,
// moving it between lists when listName differs. When the move empties a
// non-default list, that list is deleted remotely as well.
func (s *NotesService) EditNote(ctx context.Context, userID, noteID, title, content, listName string) (models.Note, error) {
	key := s.keys.Key()
	if key == nil {
		return models.Note{}, ErrNoKey
	}

	if _, ok := s.cache.NoteByID(noteID); !ok {
		return models.Note{}, fmt.Errorf("note %s: %w", noteID, remote.ErrNotFound)
	}

	list, isNew, err := s.resolveList(ctx, userID, listName, key)
	if err != nil {
		return models.Note{}, err
	}

	fields, err := codec.EncryptFields(remote.Document{
		"title":   title,
		"content": content,
		"listId":  list.ID,
	}, key, models.NoteEncryptedFields...)
	if err != nil {
		return models.Note{}, err
	}
	fields["editedAt"] = remote.ServerTimestamp

	if err := s.remote.Set(ctx, remote.NotesCollection, noteID, fields, true); err != nil {
		return models.Note{}, fmt.Errorf("updating note: %w", err)
	}

	stored, err := s.remote.Get(ctx, remote.NotesCollection, noteID)
	if err != nil {
		return models.Note{}, fmt.Errorf("reading back note: %w", err)
	}
	note, err := s.decodeNote(stored, key)
	if err != nil {
		return models.Note{}, err
	}

	var newList *models.List
	if isNew {
		newList = &list
	}
	if removedListID := s.cache.EditNote(noteID, note, newList); removedListID != "" {
		if err := s.remote.Delete(ctx, remote.ListsCollection, removedListID); err != nil {
			// cache already dropped the list; log and move on
			s.log.Error(ctx, "deleting emptied list", "id", removedListID, "err", err)
		}
	}
	return note, nil
}

// DeleteNote removes a note remotely and from the cache. Deleting the last
// note of a non-default list cascades to that list.
func (s *NotesService) DeleteNote(ctx context.Context, noteID string) error {
	if err := s.remote.Delete(ctx, remote.NotesCollection, noteID); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if removedListID := s.cache.RemoveNote(noteID); removedListID != "" {
		if err := s.remote.Delete(ctx, remote.ListsCollection, removedListID); err != nil {
			s.log.Error(ctx, "deleting emptied list", "id", removedListID, "err", err)
		}
	}
	return nil
}

// RenameList renames a list after checking the new name against the cached
// names. The default list cannot be renamed; that would orphan the sentinel.
func (s *NotesService) RenameList(ctx context.Context, listID, newName string) error {
	key := s.keys.Key()
	if key == nil {
		return ErrNoKey
	}

	list, ok := s.cache.ListByID(listID)
	if !ok {
		return fmt.Errorf("list %s: %w", listID, remote.ErrNotFound)
	}
	if list.IsDefault() {
		return errors.New("the default list cannot be renamed")
	}
	if newName == models.DefaultListSentinel || s.cache.HasListNamed(newName) {
		return ErrListNameTaken
	}

	encrypted, err := codec.EncryptFields(remote.Document{"name": newName}, key, models.ListEncryptedFields...)
	if err != nil {
		return err
	}
	if err := s.remote.Set(ctx, remote.ListsCollection, listID, encrypted, true); err != nil {
		return fmt.Errorf("renaming list: %w", err)
	}

	s.cache.RenameList(listID, newName)
	return nil
}

// DeleteList deletes every note of the list and, unless it is the default
// list, the list record itself. The remote deletes are issued as a batch of
// independent operations awaited together; partial failure leaves the batch
// partially applied and is reported, not rolled back.
func (s *NotesService) DeleteList(ctx context.Context, listID string) error {
	list, ok := s.cache.ListByID(listID)
	if !ok {
		return fmt.Errorf("list %s: %w", listID, remote.ErrNotFound)
	}

	var noteIDs []string
	for _, n := range s.cache.Notes() {
		if n.ListID == listID {
			noteIDs = append(noteIDs, n.ID)
		}
	}

	err := s.batchDelete(ctx, remote.NotesCollection, noteIDs)
	if !list.IsDefault() {
		err = errors.Join(err, s.remote.Delete(ctx, remote.ListsCollection, listID))
	}
	if err != nil {
		return fmt.Errorf("deleting list %s: %w", listID, err)
	}

	s.cache.RemoveList(listID)
	return nil
}

// DeleteAllData removes every note and every non-default list, remotely and
// locally, keeping the account and its default list ("delete all my data
// but keep my account").
func (s *NotesService) DeleteAllData(ctx context.Context, userID string) error {
	if err := s.purgeRemote(ctx, userID, false); err != nil {
		return err
	}
	s.cache.Purge(false)
	return nil
}

// PurgeAccountData removes every document the user owns, including the
// default list and the wrapped-key record. Used by account deletion; the
// auth-side removal is the caller's job.
func (s *NotesService) PurgeAccountData(ctx context.Context, userID string) error {
	if err := s.purgeRemote(ctx, userID, true); err != nil {
		return err
	}
	err := s.remote.Delete(ctx, remote.KeysCollection, userID)
	s.cache.Purge(true)
	return err
}

// ReverseNotes flips the display order. Local only.
func (s *NotesService) ReverseNotes() {
	s.cache.ReverseNotes()
}

func (s *NotesService) purgeRemote(ctx context.Context, userID string, full bool) error {
	var noteIDs, listIDs []string
	for _, n := range s.cache.Notes() {
		noteIDs = append(noteIDs, n.ID)
	}
	for _, l := range s.cache.Lists() {
		if full || !l.IsDefault() {
			listIDs = append(listIDs, l.ID)
		}
	}

	err := errors.Join(
		s.batchDelete(ctx, remote.NotesCollection, noteIDs),
		s.batchDelete(ctx, remote.ListsCollection, listIDs),
	)
	if err != nil {
		return fmt.Errorf("purging data: %w", err)
	}
	return nil
}

// batchDelete issues independent deletes and joins their failures. Succeeded
// deletes stay applied.
func (s *NotesService) batchDelete(ctx context.Context, collection string, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := s.remote.Delete(ctx, collection, id); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", collection, id, err))
		}
	}
	return errors.Join(errs...)
}

// resolveList finds the cached list with the given display name, creating a
// new remote list when none matches. The returned flag reports creation, so
// callers can thread the new list into the cache together with its first
// note. An empty name resolves to the default list.
func (s *NotesService) resolveList(ctx context.Context, userID, listName string, key []byte) (models.List, bool, error) {
	if listName == "" || listName == models.DefaultListSentinel {
		if def, ok := s.cache.DefaultList(); ok {
			return def, false, nil
		}
		return models.List{}, false, fmt.Errorf("default list: %w", remote.ErrNotFound)
	}

	for _, l := range s.cache.Lists() {
		if l.Name == listName {
			return l, false, nil
		}
	}

	encrypted, err := codec.EncryptFields(remote.Document{"name": listName}, key, models.ListEncryptedFields...)
	if err != nil {
		return models.List{}, false, err
	}
	encrypted["userId"] = userID

	id, err := s.remote.Add(ctx, remote.ListsCollection, encrypted)
	if err != nil {
		return models.List{}, false, fmt.Errorf("creating list: %w", err)
	}
	return models.List{ID: id, Name: listName, UserID: userID}, true, nil
}

func (s *NotesService) decodeNote(doc remote.Document, key []byte) (models.Note, error) {
	decrypted, err := codec.DecryptFields(doc, key, models.NoteEncryptedFields...)
	if err != nil {
		return models.Note{}, err
	}
	return codec.DecodeNote(decrypted)
}

func (s *NotesService) decodeList(doc remote.Document, key []byte) (models.List, error) {
	decrypted, err := codec.DecryptFields(doc, key, models.ListEncryptedFields...)
	if err != nil {
		return models.List{}, err
	}
	return codec.DecodeList(decrypted)
}
