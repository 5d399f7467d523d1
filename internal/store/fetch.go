package store

import (
	"context"
	"fmt"

	"github.com/roach88/lookupcache/internal/remote"
	"github.com/roach88/lookupcache/internal/schema"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Fetch runs a parameterized query under the read lock. The result set is
// fully drained before the lock is released, so a swap can never interleave
// with a partially read result.
func (s *Store) Fetch(ctx context.Context, query string, args ...any) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap, err := remote.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	return snap.Records(), nil
}

// Count returns the number of rows in table under the read lock.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.QuoteIdent(table))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
