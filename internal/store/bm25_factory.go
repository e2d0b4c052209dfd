package store

import (
	"fmt"
	"strings"
)

// BM25 backend names.
const (
	BM25BackendSQLite = "sqlite"
	BM25BackendBleve  = "bleve"
)

// NewBM25IndexWithBackend opens the text index at path with the named
// backend. An empty backend selects SQLite FTS5.
func NewBM25IndexWithBackend(path string, config BM25Config, backend string, mode OpenMode) (BM25Index, error) {
	switch strings.ToLower(backend) {
	case "", BM25BackendSQLite:
		return NewSQLiteBM25Index(path, config, mode)
	case BM25BackendBleve:
		return NewBleveBM25Index(path, config, mode)
	default:
		return nil, fmt.Errorf("unknown BM25 backend %q (use sqlite or bleve)", backend)
	}
}
