package migrations

import "embed"

// FS holds the server schema migrations.
//
//go:embed *.sql
var FS embed.FS
