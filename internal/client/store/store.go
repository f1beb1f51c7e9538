// Package store holds the decrypted notes and lists for the current session.
// It is a pure in-memory cache with a synchronous mutation API; remote writes
// are issued by callers around these mutations and are not transactionally
// linked to them.
//
// Two invariants are enforced here and nowhere else:
//
//   - a non-default list that loses its last note is removed (the cascade is
//     reported to the caller so the remote record can be deleted too);
//   - the default list is never removed by any mutation except a full purge.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/dbrusnev/notelock/internal/client/models"
)

// ContentStore is the reactive cache of decrypted records. The zero value is
// not usable; call New. Contents live in memory only and are repopulated by
// a full fetch-and-decrypt on protected-route entry.
type ContentStore struct {
	mu    sync.Mutex
	notes []models.Note
	lists []models.List
}

func New() *ContentStore {
	return &ContentStore{}
}

// Notes returns a snapshot of the notes in display order.
func (s *ContentStore) Notes() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Lists returns a snapshot of the lists in display order.
func (s *ContentStore) Lists() []models.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.List, len(s.lists))
	copy(out, s.lists)
	return out
}

// Populated reports whether the caches have been filled for this session.
// An authenticated user always has at least the default list, so an empty
// list cache means nothing has been fetched yet.
func (s *ContentStore) Populated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists) > 0
}

// NoteByID returns the cached note with the given id.
func (s *ContentStore) NoteByID(id string) (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes {
		if n.ID == id {
			return n, true
		}
	}
	return models.Note{}, false
}

// ListByID returns the cached list with the given id.
func (s *ContentStore) ListByID(id string) (models.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listByID(id)
}

// DefaultList returns the list whose decrypted name matches the sentinel.
func (s *ContentStore) DefaultList() (models.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lists {
		if l.IsDefault() {
			return l, true
		}
	}
	return models.List{}, false
}

// HasListNamed reports whether any cached list already uses name. Callers
// check this before RenameList or creating a list; the store itself does not
// enforce name uniqueness.
func (s *ContentStore) HasListNamed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lists {
		if l.Name == name {
			return true
		}
	}
	return false
}

// AddNote prepends note to the cache. If the note is the first member of a
// brand-new list, pass that list as newList and it is prepended too;
// otherwise pass nil.
func (s *ContentStore) AddNote(note models.Note, newList *models.List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append([]models.Note{note}, s.notes...)
	if newList != nil {
		s.lists = append([]models.List{*newList}, s.lists...)
	}
}

// EditNote replaces the note with the given id. If the edit moved the note
// into a brand-new list, pass it as newList. When the edit moved the note
// out of its previous list and that list is now empty and not the default,
// the emptied list is removed and its id returned so the caller can delete
// it remotely; otherwise the returned id is "".
func (s *ContentStore) EditNote(id string, newNote models.Note, newList *models.List) (removedListID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldListID string
	for i, n := range s.notes {
		if n.ID == id {
			oldListID = n.ListID
			s.notes[i] = newNote
			break
		}
	}

	if newList != nil {
		s.lists = append([]models.List{*newList}, s.lists...)
	}

	if oldListID != "" && oldListID != newNote.ListID {
		return s.dropListIfEmptied(oldListID)
	}
	return ""
}

// RemoveNote removes the note with the given id. If it was the last note of
// a non-default list, that list is removed as well and its id returned.
func (s *ContentStore) RemoveNote(id string) (removedListID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var listID string
	for i, n := range s.notes {
		if n.ID == id {
			listID = n.ListID
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			break
		}
	}
	if listID == "" {
		return ""
	}
	return s.dropListIfEmptied(listID)
}

// AddList merges a freshly fetched list and its notes into the caches.
// Records already cached under the same id are replaced, and the whole notes
// cache is re-sorted by descending creation time. Remote timestamps have
// seconds resolution, so ordering within the same second is kept stable.
func (s *ContentStore) AddList(list models.List, notesForList []models.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listByID(list.ID); ok {
		for i := range s.lists {
			if s.lists[i].ID == list.ID {
				s.lists[i] = list
			}
		}
	} else {
		s.lists = append(s.lists, list)
	}

	for _, note := range notesForList {
		replaced := false
		for i := range s.notes {
			if s.notes[i].ID == note.ID {
				s.notes[i] = note
				replaced = true
				break
			}
		}
		if !replaced {
			s.notes = append(s.notes, note)
		}
	}

	sort.SliceStable(s.notes, func(i, j int) bool {
		return s.notes[i].CreatedAt.Truncate(time.Second).After(s.notes[j].CreatedAt.Truncate(time.Second))
	})
}

// ReplaceAll swaps both caches with freshly fetched state, re-sorting notes
// by descending creation time. Used by watch-driven ingestion, where every
// snapshot carries the full result set; records absent from the snapshot
// drop out of the caches.
func (s *ContentStore) ReplaceAll(lists []models.List, notes []models.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists = append([]models.List(nil), lists...)
	s.notes = append([]models.Note(nil), notes...)
	sort.SliceStable(s.notes, func(i, j int) bool {
		return s.notes[i].CreatedAt.Truncate(time.Second).After(s.notes[j].CreatedAt.Truncate(time.Second))
	})
}

// RenameList renames the list with the given id in place. Uniqueness against
// existing names is the caller's responsibility (see HasListNamed).
func (s *ContentStore) RenameList(id, newName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lists {
		if s.lists[i].ID == id {
			s.lists[i].Name = newName
			return
		}
	}
}

// RemoveList removes every note belonging to the list. The list record
// itself is removed only when it is not the default list; the default list
// survives with zero notes. Returns whether the list record was removed.
func (s *ContentStore) RemoveList(id string) (removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.ListID != id {
			kept = append(kept, n)
		}
	}
	s.notes = kept

	list, ok := s.listByID(id)
	if !ok || list.IsDefault() {
		return false
	}
	s.removeListRecord(id)
	return true
}

// ReverseNotes reverses the display order of the notes cache. Pure UI
// convenience with no remote effect.
func (s *ContentStore) ReverseNotes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := 0, len(s.notes)-1; i < j; i, j = i+1, j-1 {
		s.notes[i], s.notes[j] = s.notes[j], s.notes[i]
	}
}

// Purge clears all notes. With full=true it clears the lists too (sign-out,
// account deletion); otherwise only the default list survives ("delete all
// my data but keep my account").
func (s *ContentStore) Purge(full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = nil

	if full {
		s.lists = nil
		return
	}

	kept := s.lists[:0]
	for _, l := range s.lists {
		if l.IsDefault() {
			kept = append(kept, l)
		}
	}
	s.lists = kept
}

// dropListIfEmptied removes the list when it has no remaining notes and is
// not the default list, returning its id. Caller must hold s.mu.
func (s *ContentStore) dropListIfEmptied(listID string) string {
	for _, n := range s.notes {
		if n.ListID == listID {
			return ""
		}
	}
	list, ok := s.listByID(listID)
	if !ok || list.IsDefault() {
		return ""
	}
	s.removeListRecord(listID)
	return listID
}

func (s *ContentStore) listByID(id string) (models.List, bool) {
	for _, l := range s.lists {
		if l.ID == id {
			return l, true
		}
	}
	return models.List{}, false
}

func (s *ContentStore) removeListRecord(id string) {
	for i, l := range s.lists {
		if l.ID == id {
			s.lists = append(s.lists[:i], s.lists[i+1:]...)
			return
		}
	}
}
