package lookup

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/event"
	"github.com/roach88/lookupcache/internal/remote"
	"github.com/roach88/lookupcache/internal/schema"
	"github.com/roach88/lookupcache/internal/store"
	"github.com/roach88/lookupcache/internal/testutil"
)

// fakeQuerier records the last call and returns canned rows.
type fakeQuerier struct {
	rows  []map[string]any
	err   error
	query string
	args  []any
	calls int
}

func (f *fakeQuerier) Fetch(_ context.Context, query string, args ...any) ([]map[string]any, error) {
	f.calls++
	f.query = query
	f.args = args
	return f.rows, f.err
}

func serverLookup() config.Lookup {
	return config.Lookup{
		ID:              "server",
		Target:          "server",
		Query:           "select * from servers where ip = :ip",
		Parameters:      map[string]string{"ip": "[ip]"},
		TagOnFailure:    []string{"_lookupfailure"},
		TagOnDefaultUse: []string{"_default"},
	}
}

func mustNew(t *testing.T, cfg config.Lookup) *Lookup {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func TestCompileQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		sql   string
		binds []string
	}{
		{
			name:  "single marker",
			query: "select * from servers where ip = :ip",
			sql:   "select * from servers where ip = ?",
			binds: []string{"ip"},
		},
		{
			name:  "order follows position",
			query: "select * from t where b = :b and a = :a or b2 = :b",
			sql:   "select * from t where b = ? and a = ? or b2 = ?",
			binds: []string{"b", "a", "b"},
		},
		{
			name:  "literals and casts untouched",
			query: "select ':x' as lit, \"col:y\", v::text from t where id = :id_1",
			sql:   "select ':x' as lit, \"col:y\", v::text from t where id = ?",
			binds: []string{"id_1"},
		},
		{
			name:  "no markers",
			query: "select count(*) from servers",
			sql:   "select count(*) from servers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compileQuery(tt.query)
			assert.Equal(t, tt.sql, q.SQL)
			assert.Equal(t, tt.binds, q.Binds)
		})
	}
}

func TestNew_UndefinedParameter(t *testing.T) {
	cfg := serverLookup()
	cfg.Query = "select * from servers where ip = :ip and name = :name"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, "lookup server: query references undefined parameters: name", err.Error())
}

func TestEnhance_RowsWrittenToTarget(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{{"ip": "10.0.0.1", "name": "alpha", "rack": int64(4)}}}
	ev := event.New(map[string]any{"ip": "10.0.0.1"})

	ok := mustNew(t, serverLookup()).Enhance(context.Background(), q, ev)

	assert.True(t, ok)
	assert.Equal(t, "select * from servers where ip = ?", q.query)
	assert.Equal(t, []any{"10.0.0.1"}, q.args)
	got, _ := ev.Get("server")
	assert.Equal(t, []any{map[string]any{"ip": "10.0.0.1", "name": "alpha", "rack": int64(4)}}, got)
	assert.Empty(t, ev.Tags())
}

func TestEnhance_RowsAreCopied(t *testing.T) {
	row := map[string]any{"name": "alpha"}
	q := &fakeQuerier{rows: []map[string]any{row}}
	ev := event.New(map[string]any{"ip": "10.0.0.1"})

	require.True(t, mustNew(t, serverLookup()).Enhance(context.Background(), q, ev))
	got, _ := ev.Get("server")
	got.([]any)[0].(map[string]any)["name"] = "changed"

	assert.Equal(t, "alpha", row["name"])
}

func TestEnhance_ZeroRowsUsesDefault(t *testing.T) {
	cfg := serverLookup()
	cfg.DefaultHash = map[string]any{"name": "unknown"}
	q := &fakeQuerier{rows: []map[string]any{}}
	ev := event.New(map[string]any{"ip": "10.9.9.9"})

	l := mustNew(t, cfg)
	assert.True(t, l.Enhance(context.Background(), q, ev))

	got, _ := ev.Get("server")
	assert.Equal(t, []any{map[string]any{"name": "unknown"}}, got)
	assert.Equal(t, []string{"_default"}, ev.Tags())

	// The default is copied, never aliased.
	got.([]any)[0].(map[string]any)["name"] = "mutated"
	assert.Equal(t, "unknown", cfg.DefaultHash["name"])
}

func TestEnhance_EmptyDefaultHash(t *testing.T) {
	cfg := serverLookup()
	cfg.DefaultHash = map[string]any{}
	ev := event.New(map[string]any{"ip": "10.9.9.9"})

	assert.True(t, mustNew(t, cfg).Enhance(context.Background(), &fakeQuerier{}, ev))

	got, _ := ev.Get("server")
	assert.Equal(t, []any{map[string]any{}}, got)
	assert.Equal(t, []string{"_default"}, ev.Tags())
}

func TestEnhance_ZeroRowsWithoutDefault(t *testing.T) {
	q := &fakeQuerier{}
	ev := event.New(map[string]any{"ip": "10.9.9.9", "server": "keep"})

	assert.False(t, mustNew(t, serverLookup()).Enhance(context.Background(), q, ev))

	got, _ := ev.Get("server")
	assert.Equal(t, "keep", got)
	assert.Empty(t, ev.Tags())
}

func TestEnhance_FailOnEmpty(t *testing.T) {
	cfg := serverLookup()
	cfg.FailOnEmpty = true
	ev := event.New(map[string]any{"ip": "10.9.9.9"})

	assert.False(t, mustNew(t, cfg).Enhance(context.Background(), &fakeQuerier{}, ev))
	assert.Equal(t, []string{"_lookupfailure"}, ev.Tags())
}

func TestEnhance_QueryError(t *testing.T) {
	boom := errors.New("no such table: servers")

	t.Run("without default", func(t *testing.T) {
		ev := event.New(map[string]any{"ip": "10.0.0.1"})
		ok := mustNew(t, serverLookup()).Enhance(context.Background(), &fakeQuerier{err: boom}, ev)

		assert.False(t, ok)
		assert.Equal(t, []string{"_lookupfailure"}, ev.Tags())
		_, present := ev.Get("server")
		assert.False(t, present)
	})

	t.Run("with default", func(t *testing.T) {
		cfg := serverLookup()
		cfg.DefaultHash = map[string]any{"name": "unknown"}
		ev := event.New(map[string]any{"ip": "10.0.0.1"})
		ok := mustNew(t, cfg).Enhance(context.Background(), &fakeQuerier{err: boom}, ev)

		assert.True(t, ok)
		assert.Equal(t, []string{"_lookupfailure", "_default"}, ev.Tags())
		got, _ := ev.Get("server")
		assert.Equal(t, []any{map[string]any{"name": "unknown"}}, got)
	})
}

func TestEnhance_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		param  string
		fields map[string]any
	}{
		{name: "missing field", param: "[ip]", fields: map[string]any{}},
		{name: "null field", param: "[ip]", fields: map[string]any{"ip": nil}},
		{name: "hash field", param: "[ip]", fields: map[string]any{"ip": map[string]any{"v4": "10.0.0.1"}}},
		{name: "array field", param: "[ip]", fields: map[string]any{"ip": []any{"10.0.0.1"}}},
		{name: "template did not interpolate", param: "%{[ip]}", fields: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := serverLookup()
			cfg.Parameters = map[string]string{"ip": tt.param}
			q := &fakeQuerier{}
			ev := event.New(tt.fields)

			assert.False(t, mustNew(t, cfg).Enhance(context.Background(), q, ev))
			assert.Equal(t, 0, q.calls, "query must not run with unbound parameters")
			assert.Equal(t, []string{"_lookupfailure"}, ev.Tags())
		})
	}
}

func TestEnhance_ParameterResolution(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := serverLookup()
	cfg.Query = "select * from t where a = :addr and s = :seen and h = :host"
	cfg.Parameters = map[string]string{
		"addr": "%{[net][ip]}/%{[net][mask]}",
		"seen": "[@timestamp]",
		"host": "%{name}",
	}
	q := &fakeQuerier{}
	ev := event.New(map[string]any{
		"net":        map[string]any{"ip": "10.0.0.1", "mask": int64(24)},
		"@timestamp": event.Timestamp{Time: ts},
		// "e" followed by a combining acute accent
		"name": "cafe\u0301",
	})

	mustNew(t, cfg).Enhance(context.Background(), q, ev)
	assert.Equal(t, []any{"10.0.0.1/24", ts, "caf\u00e9"}, q.args)
}

func TestEnhance_InvalidColumns(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{
		{"name": "alpha", "weight": big.NewInt(7)},
	}}
	ev := event.New(map[string]any{"ip": "10.0.0.1"})

	assert.False(t, mustNew(t, serverLookup()).Enhance(context.Background(), q, ev))
	got, _ := ev.Get("server")
	assert.Equal(t, []any{map[string]any{"name": "alpha"}}, got)
	assert.Equal(t, []string{"_lookupfailure"}, ev.Tags())
}

func TestConvertColumn(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	v, ok := convertColumn(ts)
	require.True(t, ok)
	assert.Equal(t, event.Timestamp{Time: ts.UTC()}, v)

	v, ok = convertColumn(int32(5))
	require.True(t, ok)
	assert.Equal(t, int64(5), v)

	v, ok = convertColumn([]byte("abc"))
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = convertColumn(struct{}{})
	assert.False(t, ok)
}

func TestProcessor_AllMustSucceed(t *testing.T) {
	hit := config.Lookup{ID: "hit", Target: "hit", Query: "select 1"}
	miss := config.Lookup{ID: "miss", Target: "miss", Query: "select 2", TagOnFailure: []string{"_miss"}, FailOnEmpty: true}

	q := &routingQuerier{rows: map[string][]map[string]any{"select 1": {{"one": int64(1)}}}}
	p, err := NewProcessor(q, []config.Lookup{miss, hit})
	require.NoError(t, err)
	require.Len(t, p.Lookups(), 2)

	ev := event.New(nil)
	assert.False(t, p.Enhance(context.Background(), ev))

	// The failing lookup did not block the one after it.
	got, present := ev.Get("hit")
	require.True(t, present)
	assert.Equal(t, []any{map[string]any{"one": int64(1)}}, got)
	assert.Equal(t, []string{"_miss"}, ev.Tags())

	p, err = NewProcessor(q, []config.Lookup{hit})
	require.NoError(t, err)
	assert.True(t, p.Enhance(context.Background(), event.New(nil)))
}

func TestNewProcessor_ReportsEveryBadLookup(t *testing.T) {
	_, err := NewProcessor(&fakeQuerier{}, []config.Lookup{
		{ID: "a", Query: "select :x"},
		{ID: "b", Query: "select :y"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup a")
	assert.Contains(t, err.Error(), "lookup b")
}

type routingQuerier struct {
	rows map[string][]map[string]any
}

func (r *routingQuerier) Fetch(_ context.Context, query string, _ ...any) ([]map[string]any, error) {
	return r.rows[query], nil
}

// A lookup with a default, against a real store, for an address the loaded
// table does not contain.
func TestEnhance_DefaultAgainstStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.BuildAll(ctx, []schema.Object{testutil.ServersTable()}))
	require.NoError(t, s.AtomicRefresh(ctx, config.Loader{ID: "servers", LocalTable: "servers"}, &remote.Snapshot{
		Columns: []string{"ip", "name"},
		Rows:    [][]any{{"10.0.0.1", "alpha"}},
	}))

	cfg := serverLookup()
	cfg.DefaultHash = map[string]any{"name": "unknown"}
	l := mustNew(t, cfg)

	known := event.New(map[string]any{"ip": "10.0.0.1"})
	assert.True(t, l.Enhance(ctx, s, known))
	got, _ := known.Get("server")
	assert.Equal(t, []any{map[string]any{"ip": "10.0.0.1", "name": "alpha"}}, got)
	assert.Empty(t, known.Tags())

	unknown := event.New(map[string]any{"ip": "10.9.9.9"})
	assert.True(t, l.Enhance(ctx, s, unknown))
	got, _ = unknown.Get("server")
	assert.Equal(t, []any{map[string]any{"name": "unknown"}}, got)
	assert.Equal(t, []string{"_default"}, unknown.Tags())
}
