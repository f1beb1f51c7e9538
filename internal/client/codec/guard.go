package codec

import (
	"fmt"
	"time"

	"github.com/dbrusnev/notelock/internal/client/models"
	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/remote"
)

// The guards below validate that a decrypted document still matches the
// expected record shape before the content store is allowed to trust it.
// They catch both storage corruption and schema drift; a failing record is
// dropped by the caller, never fatal for the view.

// DecodeNote validates and converts a decrypted note document.
func DecodeNote(doc remote.Document) (models.Note, error) {
	id, err := idField(doc, "id")
	if err != nil {
		return models.Note{}, err
	}
	userID, err := idField(doc, "userId")
	if err != nil {
		return models.Note{}, err
	}
	title, err := stringField(doc, "title")
	if err != nil {
		return models.Note{}, err
	}
	content, err := stringField(doc, "content")
	if err != nil {
		return models.Note{}, err
	}
	listID, err := idField(doc, "listId")
	if err != nil {
		return models.Note{}, err
	}
	createdAt, err := timeField(doc, "createdAt")
	if err != nil {
		return models.Note{}, err
	}

	// editedAt is only present once a note has been edited
	var editedAt time.Time
	if _, ok := doc["editedAt"]; ok {
		if editedAt, err = timeField(doc, "editedAt"); err != nil {
			return models.Note{}, err
		}
	}

	return models.Note{
		ID:        id,
		CreatedAt: createdAt,
		EditedAt:  editedAt,
		UserID:    userID,
		Title:     title,
		Content:   content,
		ListID:    listID,
	}, nil
}

// DecodeList validates and converts a decrypted list document.
func DecodeList(doc remote.Document) (models.List, error) {
	id, err := idField(doc, "id")
	if err != nil {
		return models.List{}, err
	}
	name, err := stringField(doc, "name")
	if err != nil {
		return models.List{}, err
	}
	userID, err := idField(doc, "userId")
	if err != nil {
		return models.List{}, err
	}

	return models.List{ID: id, Name: name, UserID: userID}, nil
}

// stringField checks type only. An empty string is a valid value for user
// content such as titles and bodies.
func stringField(doc remote.Document, name string) (string, error) {
	v, ok := doc[name]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", common.ErrInvalidData, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q is not a string", common.ErrInvalidData, name)
	}
	return s, nil
}

// idField additionally rejects empty strings. Identifiers key the content
// cache and an empty one can never refer to a record.
func idField(doc remote.Document, name string) (string, error) {
	s, err := stringField(doc, name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: field %q is an empty identifier", common.ErrInvalidData, name)
	}
	return s, nil
}

func timeField(doc remote.Document, name string) (time.Time, error) {
	v, ok := doc[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing field %q", common.ErrInvalidData, name)
	}
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: field %q: %v", common.ErrInvalidData, name, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("%w: field %q is not a timestamp", common.ErrInvalidData, name)
	}
}
