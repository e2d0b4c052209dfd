//go:build cgo && sqlite_fts5

package store

// CGO SQLite. mattn/go-sqlite3 only compiles FTS5 in with its own tag:
//
//   CGO_ENABLED=1 go build -tags sqlite_fts5 ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver name for SQLite.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
