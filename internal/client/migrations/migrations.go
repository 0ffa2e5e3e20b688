// Package migrations embeds the goose SQL migrations for the CLI's local
// SQLite state.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
