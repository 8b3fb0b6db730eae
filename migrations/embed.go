// Package migrations embeds the SQL migration files so they can be used
// by the goose programmatic API in tests and server bootstrap. Each
// supported database has its own directory.
package migrations

import (
	"embed"
	"io/fs"
)

// FS holds all *.sql migration files embedded at compile time.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Postgres returns the migrations for the Postgres store.
func Postgres() fs.FS {
	return sub("postgres")
}

// SQLite returns the migrations for the SQLite store.
func SQLite() fs.FS {
	return sub("sqlite")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(FS, dir)
	if err != nil {
		// Only possible if the embed pattern above changes.
		panic("migrations: " + err.Error())
	}
	return f
}
