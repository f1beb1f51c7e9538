package services

import (
	"context"
	"fmt"

	"github.com/dbrusnev/notelock/internal/client/models"
	"github.com/dbrusnev/notelock/internal/remote"
)

// WatchContent subscribes to the user's lists and notes and mirrors every
// remote snapshot into the content store, so edits made on another device
// show up without an explicit refresh. Each delivery carries the full result
// set; both caches are swapped wholesale on every change. The returned stop
// function cancels both subscriptions and must be called before sign-out.
func (s *NotesService) WatchContent(ctx context.Context, userID string) (stop func(), err error) {
	key := s.keys.Key()
	if key == nil {
		return nil, ErrNoKey
	}

	listSub, err := s.remote.Watch(ctx, remote.ListsCollection, remote.Where("userId", "==", userID))
	if err != nil {
		return nil, fmt.Errorf("watching lists: %w", err)
	}
	noteSub, err := s.remote.Watch(ctx, remote.NotesCollection, remote.Where("userId", "==", userID))
	if err != nil {
		listSub.Unsubscribe()
		return nil, fmt.Errorf("watching notes: %w", err)
	}

	go s.ingest(ctx, key, listSub, noteSub)

	return func() {
		listSub.Unsubscribe()
		noteSub.Unsubscribe()
	}, nil
}

// ingest consumes both watch streams until they close, holding the latest
// snapshot of each side and rebuilding the caches on every delivery.
func (s *NotesService) ingest(ctx context.Context, key []byte, listSub, noteSub *remote.WatchSubscription) {
	var (
		listDocs, noteDocs []remote.Document
		listsOpen          = true
		notesOpen          = true
	)
	for listsOpen || notesOpen {
		select {
		case docs, ok := <-listSub.C:
			if !ok {
				listsOpen = false
				listSub.C = nil
				continue
			}
			listDocs = docs
		case docs, ok := <-noteSub.C:
			if !ok {
				notesOpen = false
				noteSub.C = nil
				continue
			}
			noteDocs = docs
		}
		s.applySnapshot(ctx, key, listDocs, noteDocs)
	}
}

func (s *NotesService) applySnapshot(ctx context.Context, key []byte, listDocs, noteDocs []remote.Document) {
	lists := make([]models.List, 0, len(listDocs))
	known := make(map[string]bool, len(listDocs))
	for _, doc := range listDocs {
		list, err := s.decodeList(doc, key)
		if err != nil {
			s.log.Warn(ctx, "dropping undecodable list", "id", doc["id"], "err", err)
			continue
		}
		lists = append(lists, list)
		known[list.ID] = true
	}

	notes := make([]models.Note, 0, len(noteDocs))
	for _, doc := range noteDocs {
		note, err := s.decodeNote(doc, key)
		if err != nil {
			s.log.Warn(ctx, "dropping undecodable note", "id", doc["id"], "err", err)
			continue
		}
		if !known[note.ListID] {
			// list snapshot lagging behind; the note shows up once its
			// list arrives
			continue
		}
		notes = append(notes, note)
	}

	s.cache.ReplaceAll(lists, notes)
}
