package models

import "time"

// Document is a schemaless record owned by a user within a named collection.
// Fields hold the client-encrypted payload as stored (JSONB); the server
// treats them as opaque apart from timestamp substitution.
type Document struct {
	Collection string
	ID         string
	UserID     string
	Fields     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
