package remote

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/testutil"
)

// fakeSource records calls and returns canned results.
type fakeSource struct {
	connectErr error
	count      int
	countErr   error
	snap       *Snapshot
	queryErr   error

	queried      bool
	disconnected bool
}

func (f *fakeSource) Connect(context.Context) error { return f.connectErr }

func (f *fakeSource) Count(context.Context, string) (int, error) {
	return f.count, f.countErr
}

func (f *fakeSource) Query(context.Context, string) (*Snapshot, error) {
	f.queried = true
	return f.snap, f.queryErr
}

func (f *fakeSource) Disconnect() error {
	f.disconnected = true
	return nil
}

func testLoader(maxRows int) config.Loader {
	return config.Loader{ID: "servers_load", LocalTable: "servers", Query: "select ip, name from reference", MaxRows: maxRows}
}

func TestFetch_ZeroRowsReturnsEmptySnapshot(t *testing.T) {
	src := &fakeSource{count: 0}
	snap, err := NewLoaderWithSource(testLoader(10), src).Fetch(context.Background())

	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.False(t, src.queried, "rows must not be fetched when count is zero")
	assert.True(t, src.disconnected)
}

func TestFetch_OverMaxRowsReturnsEmptySnapshot(t *testing.T) {
	src := &fakeSource{count: 11, snap: &Snapshot{Columns: []string{"ip"}, Rows: [][]any{{"10.0.0.1"}}}}
	snap, err := NewLoaderWithSource(testLoader(10), src).Fetch(context.Background())

	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.False(t, src.queried, "partial data must never be fetched")
	assert.True(t, src.disconnected)
}

func TestFetch_AtMaxRowsFetches(t *testing.T) {
	want := &Snapshot{Columns: []string{"ip"}, Rows: [][]any{{"10.0.0.1"}, {"10.0.0.2"}}}
	src := &fakeSource{count: 2, snap: want}
	snap, err := NewLoaderWithSource(testLoader(2), src).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, snap)
}

func TestFetch_ErrorsAlwaysDisconnect(t *testing.T) {
	boom := errors.New("boom")

	t.Run("count", func(t *testing.T) {
		src := &fakeSource{countErr: boom}
		_, err := NewLoaderWithSource(testLoader(10), src).Fetch(context.Background())

		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, StageCount, qe.Stage)
		assert.ErrorIs(t, err, boom)
		assert.True(t, src.disconnected)
	})

	t.Run("fetch", func(t *testing.T) {
		src := &fakeSource{count: 1, queryErr: boom}
		_, err := NewLoaderWithSource(testLoader(10), src).Fetch(context.Background())

		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, StageFetch, qe.Stage)
		assert.Equal(t, "loader servers_load: fetch: boom", err.Error())
		assert.True(t, src.disconnected)
	})

	t.Run("connect", func(t *testing.T) {
		src := &fakeSource{connectErr: boom}
		_, err := NewLoaderWithSource(testLoader(10), src).Fetch(context.Background())

		assert.True(t, IsConnectionError(err))
		assert.ErrorIs(t, err, boom)
	})
}

func TestDatabase_FetchFromSQLite(t *testing.T) {
	ref := testutil.NewReferenceDB(t)
	ref.SetServers(t, testutil.Servers(
		"10.0.0.1", "alpha",
		"10.0.0.2", "beta",
		"10.0.0.3", "gamma",
	)...)

	desc := ref.ServersLoader()
	desc.Query = "select ip, name from reference order by ip;"
	snap, err := NewLoader(desc).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ip", "name"}, snap.Columns)
	assert.Equal(t, [][]any{
		{"10.0.0.1", "alpha"},
		{"10.0.0.2", "beta"},
		{"10.0.0.3", "gamma"},
	}, snap.Rows)
	assert.Equal(t, map[string]any{"ip": "10.0.0.2", "name": "beta"}, snap.Records()[1])
}

func TestDatabase_MaxRowsAgainstSQLite(t *testing.T) {
	ref := testutil.NewReferenceDB(t)
	ref.SetServers(t, testutil.Servers("10.0.0.1", "alpha", "10.0.0.2", "beta")...)

	desc := ref.ServersLoader()
	desc.MaxRows = 1
	snap, err := NewLoader(desc).Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestDatabase_CountQueryError(t *testing.T) {
	ref := testutil.NewReferenceDB(t)

	desc := ref.ServersLoader()
	desc.Query = "select nope from missing_table"
	_, err := NewLoader(desc).Fetch(context.Background())

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, StageCount, qe.Stage)
}

func TestDatabase_ConnectError(t *testing.T) {
	desc := testLoader(10)
	desc.Connection = config.Connection{Driver: "no-such-driver", DSN: filepath.Join(t.TempDir(), "x.db")}

	_, err := NewLoader(desc).Fetch(context.Background())
	assert.True(t, IsConnectionError(err))
}

func TestSnapshot_NilIsEmpty(t *testing.T) {
	var snap *Snapshot
	assert.True(t, snap.Empty())
	assert.Equal(t, 0, snap.Len())
	assert.Nil(t, snap.Records())
}
