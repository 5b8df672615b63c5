package migrations

import "embed"

// FS contains embedded SQLite migrations for narrative storage.
//
//go:embed *.sql
var FS embed.FS
