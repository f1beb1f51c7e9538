// Package migrations embeds the SQL migrations for the local key store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
