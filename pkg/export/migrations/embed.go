// Package migrations holds the PostgreSQL schema of the SQL export.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
