//go:build !cgo || !sqlite_fts5

package store

// Pure Go SQLite, the default build. FTS5 is compiled in.
//
//   go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver name for SQLite.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
