package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// SignalStore reads per-file structural signals. They annotate fused
// results and rank the orient listing; they never enter fusion.
type SignalStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenSignalStore opens the module_signals table in the database at path.
func OpenSignalStore(path string, mode OpenMode) (*SignalStore, error) {
	db, err := openSQLite(path, mode)
	if err != nil {
		return nil, err
	}

	s := &SignalStore{db: db, path: path}
	if mode == OpenExisting && path != "" {
		if err := requireTable(db, path, "module_signals"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS module_signals (
		path TEXT PRIMARY KEY,
		is_used INTEGER NOT NULL DEFAULT 0,
		importer_count INTEGER,
		activity_level TEXT,
		centrality_score REAL,
		is_entry_point INTEGER,
		is_test_file INTEGER,
		commit_count INTEGER
	);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Put inserts or replaces signal rows. Nil fields are stored as NULL.
func (s *SignalStore) Put(ctx context.Context, signals []ModuleSignal) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("signal store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO module_signals
			(path, is_used, importer_count, activity_level, centrality_score,
			 is_entry_point, is_test_file, commit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		_, err := stmt.ExecContext(ctx, sig.Path, sig.IsUsed,
			sig.ImporterCount, sig.ActivityLevel, sig.CentralityScore,
			sig.IsEntryPoint, sig.IsTestFile, sig.CommitCount)
		if err != nil {
			return fmt.Errorf("failed to store signals for %s: %w", sig.Path, err)
		}
	}
	return tx.Commit()
}

// Annotations returns the signals known for each path in paths. Paths with
// no row are absent; NULL columns stay nil.
func (s *SignalStore) Annotations(ctx context.Context, paths []string) (map[string]Annotation, error) {
	out := make(map[string]Annotation, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("signal store")
	}

	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, importer_count, activity_level, is_entry_point, is_test_file
		FROM module_signals
		WHERE path IN (`+placeholders(len(paths))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			path      string
			importers sql.NullInt64
			activity  sql.NullString
			entry     sql.NullBool
			test      sql.NullBool
		)
		if err := rows.Scan(&path, &importers, &activity, &entry, &test); err != nil {
			return nil, fmt.Errorf("failed to scan signals: %w", err)
		}

		var a Annotation
		if importers.Valid {
			a.ImporterCount = &importers.Int64
		}
		if activity.Valid {
			a.ActivityLevel = &activity.String
		}
		if entry.Valid {
			a.IsEntryPoint = &entry.Bool
		}
		if test.Valid {
			a.IsTestFile = &test.Bool
		}
		out[path] = a
	}
	return out, rows.Err()
}

// orientSQL ranks files by a structural composite: entry point 20, two per
// importer up to 20, activity 10/5/2, commit tiers 10/8/5/2, tests minus 5.
const orientSQL = `
	SELECT
		path,
		COALESCE(is_entry_point, 0) * 20 +
		MIN(COALESCE(importer_count, 0) * 2, 20) +
		CASE COALESCE(activity_level, 'dormant')
			WHEN 'high' THEN 10
			WHEN 'medium' THEN 5
			WHEN 'low' THEN 2
			ELSE 0
		END +
		CASE
			WHEN COALESCE(commit_count, 0) > 50 THEN 10
			WHEN COALESCE(commit_count, 0) > 20 THEN 8
			WHEN COALESCE(commit_count, 0) > 5 THEN 5
			WHEN COALESCE(commit_count, 0) > 0 THEN 2
			ELSE 0
		END -
		COALESCE(is_test_file, 0) * 5
		AS composite_score,
		COALESCE(importer_count, 0),
		COALESCE(activity_level, 'unknown'),
		COALESCE(is_entry_point, 0),
		COALESCE(is_test_file, 0),
		COALESCE(commit_count, 0)
	FROM module_signals
	WHERE path LIKE ? ESCAPE '\'
	ORDER BY composite_score DESC, path ASC
	LIMIT ?`

// Orient lists files under dir by structural importance. An empty dir or
// "." covers every file.
func (s *SignalStore) Orient(ctx context.Context, dir string, limit int) ([]OrientEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("signal store")
	}
	if limit <= 0 {
		return []OrientEntry{}, nil
	}

	rows, err := s.db.QueryContext(ctx, orientSQL, orientPattern(dir), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	out := []OrientEntry{}
	for rows.Next() {
		var e OrientEntry
		var entry, test int64
		if err := rows.Scan(&e.Path, &e.Score, &e.ImporterCount, &e.ActivityLevel,
			&entry, &test, &e.CommitCount); err != nil {
			return nil, fmt.Errorf("failed to scan signals: %w", err)
		}
		e.IsEntryPoint = entry != 0
		e.IsTestFile = test != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// orientPattern turns a directory into a LIKE prefix pattern.
func orientPattern(dir string) string {
	dir = strings.TrimPrefix(strings.TrimSpace(dir), "./")
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || dir == "." {
		return "%"
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(dir) + "%"
}

// Close closes the database. It is idempotent.
func (s *SignalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
