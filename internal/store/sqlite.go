package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	serrors "github.com/Aman-CERP/scry/internal/errors"
)

// sqlitePragmas are applied to every connection. They are set with
// statements because DSN parameters differ between the two drivers.
var sqlitePragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA cache_size = -65536",
	"PRAGMA temp_store = MEMORY",
}

// ownerPragmas change the database file itself, so they only run on stores
// scry creates. A store opened with OpenExisting belongs to its indexer.
var ownerPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

// openSQLite opens the database at path. An empty path opens an in-memory
// database. With OpenExisting a missing file is a store-not-found error and
// a failed integrity check is a corrupt-index error; nothing is created or
// removed.
func openSQLite(path string, mode OpenMode) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if mode == OpenExisting {
				return nil, serrors.New(serrors.ErrCodeStoreNotFound,
					fmt.Sprintf("store not found: %s", path), err).WithDetail("path", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
			}
		}
		dsn = path
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: an in-memory database is per connection, and one
	// writer avoids lock contention on files.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := sqlitePragmas
	if mode != OpenExisting {
		pragmas = append(append([]string{}, ownerPragmas...), sqlitePragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, classifyOpenError(path, fmt.Errorf("failed to set pragma: %w", err))
		}
	}

	if path != "" && mode == OpenExisting {
		if err := checkIntegrity(db); err != nil {
			_ = db.Close()
			return nil, serrors.New(serrors.ErrCodeCorruptIndex,
				fmt.Sprintf("store corrupted: %s", path), err).WithDetail("path", path)
		}
	}

	return db, nil
}

// OpenDB opens or creates a SQLite database with the store pragmas, for
// packages that keep their own tables next to the stores. An empty path
// opens an in-memory database.
func OpenDB(path string) (*sql.DB, error) {
	return openSQLite(path, OpenCreate)
}

func checkIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// classifyOpenError maps "not a database" failures to a corrupt-index error.
func classifyOpenError(path string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed") {
		return serrors.New(serrors.ErrCodeCorruptIndex,
			fmt.Sprintf("store corrupted: %s", path), err).WithDetail("path", path)
	}
	return err
}

// tableExists reports whether a table (or virtual table) is present.
func tableExists(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return false, classifyOpenError("", fmt.Errorf("cannot query schema: %w", err))
	}
	return count > 0, nil
}

// requireTable returns a store-not-found error when table is missing.
func requireTable(db *sql.DB, path, table string) error {
	ok, err := tableExists(db, table)
	if err != nil {
		return err
	}
	if !ok {
		return serrors.New(serrors.ErrCodeStoreNotFound,
			fmt.Sprintf("table %s missing in %s", table, path), nil).
			WithDetail("path", path).WithDetail("table", table)
	}
	return nil
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func errClosed(what string) error {
	return serrors.New(serrors.ErrCodeStoreClosed, what+" is closed", nil)
}
