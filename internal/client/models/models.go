// Package models defines the decrypted, client-side shapes of NoteLock
// records. Remotely these exist only as documents whose sensitive fields are
// envelope-encrypted strings; the codec package converts between the two.
package models

import "time"

// DefaultListSentinel is the fixed plaintext name of every user's default
// list. The default list carries no server-visible flag, since a flag would
// leak structure, so "is this the default list" is always re-derived by
// comparing the decrypted name against this constant. The value is
// non-secret; it only has to be meaningless to the server and unlikely to
// collide with a name a user would choose.
const DefaultListSentinel = "tQ3cmVq07fJZL1flhaaSGeqSXDMyVHFT"

// List is a named collection of notes. Exactly one list per user is the
// default list (decrypted name == DefaultListSentinel); it may be emptied
// but never deleted by direct user action.
type List struct {
	ID     string
	Name   string
	UserID string
}

// IsDefault reports whether this is the user's default list. All default
// list checks go through this predicate; the sentinel comparison must not
// be scattered elsewhere.
func (l List) IsDefault() bool {
	return l.Name == DefaultListSentinel
}

// DisplayName returns the list name as shown to the user. The default list
// has no user-chosen name.
func (l List) DisplayName() string {
	if l.IsDefault() {
		return "Notes"
	}
	return l.Name
}

// Note is a single text note. Title, Content and ListID are stored remotely
// as independently encrypted envelopes; CreatedAt and EditedAt are opaque
// server-assigned timestamps. A zero EditedAt means the note was never
// edited.
type Note struct {
	ID        string
	CreatedAt time.Time
	EditedAt  time.Time
	UserID    string
	Title     string
	Content   string
	ListID    string
}

// Encrypted field allowlists used with the record codec.
var (
	NoteEncryptedFields = []string{"title", "content", "listId"}
	ListEncryptedFields = []string{"name"}
)
