// Package migrations embeds the SQL schema migrations into the binary.
//
// Apply them with database.DB.Migrate(ctx, migrations.FS, migrations.Dir).
package migrations

import "embed"

// FS holds every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS that holds the migrations.
const Dir = "."
