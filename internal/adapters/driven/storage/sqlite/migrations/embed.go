// Package migrations embeds the SQL schema migrations for the SQLite
// metadata and index store.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
