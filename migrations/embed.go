// Package migrations embeds SQL migration files.
//
// Naming: NNNN_name_up.sql / NNNN_name_down.sql, aplicados en orden lexicográfico.
package migrations

import "embed"

// PostgresFS contains the PostgreSQL schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// SQLiteFS contains the SQLite schema.
//
//go:embed sqlite/*.sql
var SQLiteFS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
