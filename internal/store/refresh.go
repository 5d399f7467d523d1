package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/remote"
	"github.com/roach88/lookupcache/internal/schema"
)

// Fetcher produces the snapshot for one loader. *remote.Loader implements it.
type Fetcher interface {
	Descriptor() config.Loader
	Fetch(ctx context.Context) (*remote.Snapshot, error)
}

// AtomicRefresh replaces the contents of target's live table with snap.
//
//  1. An empty snapshot is a no-op; the live table keeps its data.
//  2. snap is bulk inserted into the staging table without the lock.
//  3. Under the write lock, one transaction renames staging to a scratch
//     name, live to staging and scratch to live, then empties the new
//     staging table (the old data).
//
// Readers observe the old table or the new one, never a partial table. The
// write lock is held only for the renames, so its hold time does not depend
// on the snapshot size.
func (s *Store) AtomicRefresh(ctx context.Context, target config.Loader, snap *remote.Snapshot) error {
	if snap.Empty() {
		slog.Debug("empty snapshot, keeping table contents", "loader", target.ID, "table", target.LocalTable)
		return nil
	}

	if err := s.insert(ctx, target.TempTable(), snap); err != nil {
		return &RefreshError{Loader: target.ID, Table: target.LocalTable, Stage: StageInsert, Err: err}
	}

	if err := s.swap(ctx, target); err != nil {
		slog.Error("table swap failed, local store may be inconsistent",
			"loader", target.ID,
			"table", target.LocalTable,
			"error", err,
		)
		return &RefreshError{Loader: target.ID, Table: target.LocalTable, Stage: StageSwap, Err: err}
	}

	s.record(target.LocalTable, snap.Len())
	slog.Info("table refreshed", "loader", target.ID, "table", target.LocalTable, "rows", snap.Len())
	return nil
}

// RefreshAll fetches and refreshes each loader in turn, each with its own
// lock acquisition. Query and insert failures are logged and collected while
// the remaining loaders run. A remote that cannot be reached or a swap
// failure stops the cycle at once.
func (s *Store) RefreshAll(ctx context.Context, loaders []Fetcher) error {
	var errs []error
	for _, l := range loaders {
		desc := l.Descriptor()

		snap, err := l.Fetch(ctx)
		if err != nil {
			errs = append(errs, &RefreshError{Loader: desc.ID, Table: desc.LocalTable, Stage: StageFetch, Err: err})
			if remote.IsConnectionError(err) {
				slog.Error("loader cannot reach remote database", "loader", desc.ID, "error", err)
				return errors.Join(errs...)
			}
			slog.Warn("loader fetch failed", "loader", desc.ID, "error", err)
			continue
		}

		if err := s.AtomicRefresh(ctx, desc, snap); err != nil {
			errs = append(errs, err)
			if IsFatalRefresh(err) {
				return errors.Join(errs...)
			}
			slog.Warn("loader refresh failed", "loader", desc.ID, "error", err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) insert(ctx context.Context, table string, snap *remote.Snapshot) (err error) {
	db, err := s.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Leftovers from an interrupted cycle must not leak into the new data.
	if _, err = tx.ExecContext(ctx, "DELETE FROM "+schema.QuoteIdent(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	cols := make([]string, len(snap.Columns))
	marks := make([]string, len(snap.Columns))
	for i, c := range snap.Columns {
		cols[i] = schema.QuoteIdent(c)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		schema.QuoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "),
	))
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range snap.Rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i, table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (s *Store) swap(ctx context.Context, target config.Loader) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("store is closed")
	}

	live := schema.QuoteIdent(target.LocalTable)
	temp := schema.QuoteIdent(target.TempTable())
	scratch := schema.QuoteIdent(s.names.Generate())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	steps := []string{
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", temp, scratch),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", live, temp),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", scratch, live),
		fmt.Sprintf("DELETE FROM %s", temp),
	}
	for _, step := range steps {
		if _, err = tx.ExecContext(ctx, step); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

// handle returns the pool for work done outside the lock.
func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	return s.db, nil
}
