package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// DocumentStore reads document bodies and provenance from the documents
// table. The vector oracles use it to turn graph hits into content.
type DocumentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenDocumentStore opens the documents table in the database at path.
func OpenDocumentStore(path string, mode OpenMode) (*DocumentStore, error) {
	db, err := openSQLite(path, mode)
	if err != nil {
		return nil, err
	}

	s := &DocumentStore{db: db, path: path}
	if mode == OpenExisting && path != "" {
		if err := requireTable(db, path, "documents"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL DEFAULT ''
	);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Put inserts or replaces documents.
func (s *DocumentStore) Put(ctx context.Context, docs []DocumentRecord) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("document store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, content, file_path, event_type, timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, d.FilePath, d.EventType, d.Timestamp); err != nil {
			return fmt.Errorf("failed to store document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the records for ids. Unknown IDs are absent from the map.
func (s *DocumentStore) Get(ctx context.Context, ids []string) (map[string]DocumentRecord, error) {
	out := make(map[string]DocumentRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("document store")
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, file_path, event_type, timestamp FROM documents WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.Content, &d.FilePath, &d.EventType, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errClosed("document store")
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database. It is idempotent.
func (s *DocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
