// Package migrations embeds the schema migrations for each supported
// database so the binary needs no files at runtime.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
