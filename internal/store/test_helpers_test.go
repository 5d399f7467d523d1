package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/remote"
	"github.com/roach88/lookupcache/internal/schema"
	"github.com/roach88/lookupcache/internal/testutil"
)

// createTestStore creates a file-backed store in t.TempDir() with the
// servers table and its index built.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return createStoreAt(t, filepath.Join(t.TempDir(), "local.db"), opts...)
}

// createStoreAt is createTestStore for an explicit DSN, such as an
// in-memory one.
func createStoreAt(t *testing.T, dsn string, opts ...Option) *Store {
	t.Helper()
	s, err := Open(dsn, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	err = s.BuildAll(context.Background(), []schema.Object{testutil.ServersIndex(), testutil.ServersTable()})
	if err != nil {
		t.Fatalf("BuildAll() failed: %v", err)
	}
	return s
}

func serversTarget() config.Loader {
	return config.Loader{ID: "servers_load", LocalTable: "servers", Query: "select ip, name from reference", MaxRows: 100}
}

func serversSnapshot(pairs ...string) *remote.Snapshot {
	snap := &remote.Snapshot{Columns: []string{"ip", "name"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		snap.Rows = append(snap.Rows, []any{pairs[i], pairs[i+1]})
	}
	return snap
}

// staticFetcher returns a canned snapshot or error.
type staticFetcher struct {
	desc config.Loader
	snap *remote.Snapshot
	err  error
}

func (f staticFetcher) Descriptor() config.Loader { return f.desc }

func (f staticFetcher) Fetch(context.Context) (*remote.Snapshot, error) {
	return f.snap, f.err
}
