// Package remote fetches loader snapshots from remote databases.
//
// A fetch is all or nothing. It connects, counts the rows the loader query
// would return, and only then reads them. A query that returns zero rows,
// or more than the loader's max_rows, yields an empty snapshot so that the
// local table keeps its previous contents.
package remote

import (
	"context"
	"log/slog"

	"github.com/roach88/lookupcache/internal/config"
)

// Loader fetches the snapshot for one loader descriptor.
type Loader struct {
	desc   config.Loader
	source Source
}

// NewLoader returns a Loader reading from the descriptor's own connection.
func NewLoader(desc config.Loader) *Loader {
	return NewLoaderWithSource(desc, NewDatabase(desc.Connection))
}

// NewLoaderWithSource returns a Loader reading from source.
func NewLoaderWithSource(desc config.Loader, source Source) *Loader {
	return &Loader{desc: desc, source: source}
}

// ID returns the loader id.
func (l *Loader) ID() string { return l.desc.ID }

// Descriptor returns the loader descriptor.
func (l *Loader) Descriptor() config.Loader { return l.desc }

// Fetch runs the loader query. The connection is always released before
// Fetch returns, whatever the outcome.
func (l *Loader) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := l.source.Connect(ctx); err != nil {
		return nil, &ConnectionError{Loader: l.desc.ID, Err: err}
	}
	defer func() {
		if err := l.source.Disconnect(); err != nil {
			slog.Warn("remote disconnect failed", "loader", l.desc.ID, "error", err)
		}
	}()

	count, err := l.source.Count(ctx, l.desc.Query)
	if err != nil {
		return nil, &QueryError{Loader: l.desc.ID, Stage: StageCount, Err: err}
	}

	switch {
	case count == 0:
		slog.Warn("loader query returned no rows", "loader", l.desc.ID, "local_table", l.desc.LocalTable)
		return &Snapshot{}, nil
	case count > l.desc.MaxRows:
		slog.Warn("loader query returned more rows than max_rows, skipping",
			"loader", l.desc.ID,
			"local_table", l.desc.LocalTable,
			"count", count,
			"max_rows", l.desc.MaxRows,
		)
		return &Snapshot{}, nil
	}

	snap, err := l.source.Query(ctx, l.desc.Query)
	if err != nil {
		return nil, &QueryError{Loader: l.desc.ID, Stage: StageFetch, Err: err}
	}
	slog.Debug("loader fetched rows", "loader", l.desc.ID, "rows", snap.Len())
	return snap, nil
}
