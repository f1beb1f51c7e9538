package models

import "time"

// User is a server-side account record. The server never sees the content
// key or the password itself, only the login salt and the verifier derived
// from the password by the client.
type User struct {
	ID            string
	Email         string
	Salt          []byte
	Verifier      []byte
	EmailVerified bool
	CreatedAt     time.Time
}
