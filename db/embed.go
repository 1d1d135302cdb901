// Package db embeds the SQL migration files shipped with the binary.
package db

import "embed"

// MigrationsFS holds the schema migrations under migrations/; pass it
// through fs.Sub before handing it to the migrate runner.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
