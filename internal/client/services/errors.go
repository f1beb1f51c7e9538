package services

import (
	"errors"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/cryptox"
	"github.com/dbrusnev/notelock/internal/remote"
)

var (
	// ErrNoKey means a content operation ran without an unwrapped user key.
	ErrNoKey = errors.New("no user key available")

	// ErrListNameTaken is returned when a list rename or creation collides
	// with an existing list name.
	ErrListNameTaken = errors.New("a list with this name already exists")
)

// userMessages maps known failure classes to the fixed wording shown to the
// user. Crypto failures deliberately collapse into the generic entries so
// nothing acts as a decryption oracle; unknown errors fall through to their
// raw message.
var userMessages = []struct {
	err error
	msg string
}{
	{common.ErrInvalidCredentials, "Invalid credentials"},
	{cryptox.ErrDecryptionFailed, "Invalid data"},
	{cryptox.ErrInvalidEnvelope, "Invalid data"},
	{common.ErrInvalidData, "Invalid data"},
	{remote.ErrUnauthenticated, "Your session has expired, please sign in again"},
	{remote.ErrPermissionDenied, "You do not have permission to do that"},
	{remote.ErrUnavailable, "Service unavailable, please try again later"},
	{remote.ErrNotFound, "Record not found"},
	{ErrNoKey, "Please sign in first"},
	{ErrListNameTaken, "A list with this name already exists"},
}

// UserMessage renders err as the text to display in a toast or alert.
func UserMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
