// Package migrations embeds the versioned PostgreSQL schema files (NNN_description.sql).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
