package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	serrors "github.com/Aman-CERP/scry/internal/errors"
)

// UsageStore keeps the query log and the usage records derived from it.
// Reads are lock-free; every write takes the cross-process file lock.
type UsageStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	lock   *FileLock
	closed bool
}

// OpenUsageStore opens the usage database at path. An empty path is an
// in-memory store without a file lock.
func OpenUsageStore(path string, mode OpenMode) (*UsageStore, error) {
	db, err := openSQLite(path, mode)
	if err != nil {
		return nil, err
	}

	s := &UsageStore{db: db, path: path}
	if path != "" {
		s.lock = NewFileLock(path)
	}

	if mode == OpenExisting && path != "" {
		for _, table := range []string{"query_log", "usage_records"} {
			if err := requireTable(db, path, table); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return s, nil
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS query_log (
		query_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		results TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		used INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_doc ON usage_records(doc_id);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *UsageStore) withWriteLock(ctx context.Context, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// LogQuery stores one served query with its result IDs in rank order.
func (s *UsageStore) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	results, err := json.Marshal(entry.DocIDs)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("usage store")
	}

	return s.withWriteLock(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO query_log (query_id, query, mode, intent, results, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entry.QueryID, entry.Query, entry.Mode, entry.Intent, string(results), entry.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to log query: %w", err)
		}
		return nil
	})
}

// Query returns a logged query. An unknown ID is a result-not-found error.
func (s *UsageStore) Query(ctx context.Context, queryID string) (*QueryLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("usage store")
	}

	var (
		entry     QueryLogEntry
		results   string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT query_id, query, mode, intent, results, created_at
		FROM query_log WHERE query_id = ?`, queryID).
		Scan(&entry.QueryID, &entry.Query, &entry.Mode, &entry.Intent, &results, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, serrors.New(serrors.ErrCodeResultNotFound,
			fmt.Sprintf("query %s not found", queryID), nil).WithDetail("query_id", queryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query log: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt)
	if err := json.Unmarshal([]byte(results), &entry.DocIDs); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return &entry, nil
}

// Resolve maps a 1-based rank of a logged query to its document ID.
func (s *UsageStore) Resolve(ctx context.Context, queryID string, rank int) (string, error) {
	entry, err := s.Query(ctx, queryID)
	if err != nil {
		return "", err
	}
	if rank < 1 || rank > len(entry.DocIDs) {
		return "", serrors.New(serrors.ErrCodeInvalidRank,
			fmt.Sprintf("rank %d out of range 1..%d", rank, len(entry.DocIDs)), nil).
			WithDetail("query_id", queryID)
	}
	return entry.DocIDs[rank-1], nil
}

// Record writes one usage record.
func (s *UsageStore) Record(ctx context.Context, rec UsageRecord) error {
	if rec.DocID == "" {
		return serrors.ValidationError("usage record needs a document ID", nil)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("usage store")
	}

	return s.withWriteLock(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO usage_records (query_id, doc_id, rank, used, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			rec.QueryID, rec.DocID, rec.Rank, rec.Used, rec.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}
		return nil
	})
}

// UseCounts returns how often each document was marked used. Documents
// never used are absent.
func (s *UsageStore) UseCounts(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed("usage store")
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, COUNT(*) FROM usage_records
		WHERE used = 1 AND doc_id IN (`+placeholders(len(ids))+`)
		GROUP BY doc_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// Close closes the database. It is idempotent.
func (s *UsageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return s.db.Close()
}
