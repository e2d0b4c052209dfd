package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// CoChangeStore reads pairs of files that changed in the same commits.
type CoChangeStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenCoChangeStore opens the co_changes table in the database at path.
func OpenCoChangeStore(path string, mode OpenMode) (*CoChangeStore, error) {
	db, err := openSQLite(path, mode)
	if err != nil {
		return nil, err
	}

	s := &CoChangeStore{db: db, path: path}
	if mode == OpenExisting && path != "" {
		if err := requireTable(db, path, "co_changes"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS co_changes (
		file_a TEXT NOT NULL,
		file_b TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (file_a, file_b)
	);
	CREATE INDEX IF NOT EXISTS idx_co_changes_b ON co_changes(file_b);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Add upserts co-change pairs. A repeated pair takes the new count.
func (s *CoChangeStore) Add(ctx context.Context, pairs []CoChange) error {
	if len(pairs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("co-change store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO co_changes (file_a, file_b, count) VALUES (?, ?, ?)
		ON CONFLICT(file_a, file_b) DO UPDATE SET count = excluded.count`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, p.FileA, p.FileB, p.Count); err != nil {
			return fmt.Errorf("failed to store pair %s/%s: %w", p.FileA, p.FileB, err)
		}
	}
	return tx.Commit()
}

// Neighbors returns files that co-changed with any file whose path contains
// term, case-insensitively. Each direction of the pair is read separately
// and capped at perSide rows, highest count first. RelatedTo is the matched
// file.
func (s *CoChangeStore) Neighbors(ctx context.Context, term string, perSide int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("co-change store")
	}
	if perSide <= 0 || strings.TrimSpace(term) == "" {
		return []Neighbor{}, nil
	}

	pattern := "%" + strings.ToLower(term) + "%"
	queries := []string{
		`SELECT file_b, count, file_a FROM co_changes WHERE LOWER(file_a) LIKE ? ORDER BY count DESC, file_b LIMIT ?`,
		`SELECT file_a, count, file_b FROM co_changes WHERE LOWER(file_b) LIKE ? ORDER BY count DESC, file_a LIMIT ?`,
	}

	var out []Neighbor
	for _, q := range queries {
		rows, err := s.db.QueryContext(ctx, q, pattern, perSide)
		if err != nil {
			return nil, fmt.Errorf("failed to query co-changes: %w", err)
		}
		for rows.Next() {
			var n Neighbor
			if err := rows.Scan(&n.Path, &n.Count, &n.RelatedTo); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan co-change: %w", err)
			}
			out = append(out, n)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []Neighbor{}
	}
	return out, nil
}

// HasData reports whether any pair is stored.
func (s *CoChangeStore) HasData(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, errClosed("co-change store")
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM co_changes LIMIT 1`).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Close closes the database. It is idempotent.
func (s *CoChangeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
