// Package migrations embeds the goose SQL migrations for the ledger stores.
// Migrations are embedded so they work regardless of working directory.
package migrations

import (
	"embed"
	"io/fs"
)

// FS holds one directory per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Postgres returns the migrations for the Postgres ledger.
func Postgres() fs.FS { return sub("postgres") }

// SQLite returns the migrations for the SQLite ledger.
func SQLite() fs.FS { return sub("sqlite") }

func sub(dir string) fs.FS {
	f, err := fs.Sub(FS, dir)
	if err != nil {
		// Only reachable if the embed directive and dir names disagree.
		panic(err)
	}
	return f
}
