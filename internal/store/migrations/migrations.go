// Package migrations embeds the versioned schema of the offline store.
// Migrations are additive only; a destructive change needs a new database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
