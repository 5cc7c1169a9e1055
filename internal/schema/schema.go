// Package schema holds the tracker's migration scripts in application order.
package schema

import (
	"embed"

	"tracker/internal/migrate"
)

// FS contains every script at its migration label.
//
//go:embed auth/migrations/*.sql board/migrations/*.sql task/migrations/*.sql
var FS embed.FS

// Migrations is the ordered list applied at startup. Append only; the label is
// the applied key, so renaming a file makes it run again.
var Migrations = []migrate.Migration{
	{Module: "auth", Filename: "0000_initial_tables.sql"},
	{Module: "auth", Filename: "0001_permissions_seed.sql"},
	{Module: "board", Filename: "0000_initial_tables.sql"},
	{Module: "task", Filename: "0000_initial_tables.sql"},
	{Module: "task", Filename: "0001_search_indexes.sql"},
}
