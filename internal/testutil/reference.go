// Package testutil provides fixtures shared by package tests: a file-backed
// SQLite database standing in for the remote source, the servers schema
// used across scenarios, and a deterministic clock.
package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/schema"
)

// Server is one row of the reference table.
type Server struct {
	IP   string
	Name string
}

// ReferenceDB is a SQLite file playing the remote database. It holds a
// single table, reference(ip text, name text).
type ReferenceDB struct {
	DSN string
	db  *sql.DB
}

// NewReferenceDB creates an empty reference database in t.TempDir().
func NewReferenceDB(t *testing.T) *ReferenceDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE reference (ip text, name text)`)
	require.NoError(t, err)
	return &ReferenceDB{DSN: path, db: db}
}

// Connection returns the connection settings for loaders.
func (r *ReferenceDB) Connection() config.Connection {
	return config.Connection{Driver: "sqlite3", DSN: r.DSN}
}

// SetServers replaces the reference rows.
func (r *ReferenceDB) SetServers(t *testing.T, servers ...Server) {
	t.Helper()
	tx, err := r.db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`DELETE FROM reference`)
	require.NoError(t, err)
	for _, s := range servers {
		_, err = tx.Exec(`INSERT INTO reference (ip, name) VALUES (?, ?)`, s.IP, s.Name)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

// Exec runs a statement against the reference database.
func (r *ReferenceDB) Exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := r.db.Exec(query, args...)
	require.NoError(t, err)
}

// ServersLoader is the loader that copies reference into servers.
func (r *ReferenceDB) ServersLoader() config.Loader {
	return config.Loader{
		ID:         "servers_load",
		LocalTable: "servers",
		Query:      "select ip, name from reference",
		MaxRows:    config.DefaultMaxRows,
		Connection: r.Connection(),
	}
}

// ServersTable is the local table the servers loader fills.
func ServersTable() schema.TableDef {
	return schema.TableDef{
		Name: "servers",
		Columns: []schema.Column{
			{Name: "ip", Datatype: "text"},
			{Name: "name", Datatype: "text"},
		},
	}
}

// ServersIndex indexes servers by ip.
func ServersIndex() schema.IndexDef {
	return schema.IndexDef{Name: "servers_ip", Table: "servers", Columns: []string{"ip"}}
}

// MemoryDSN returns an in-memory local store DSN private to the test.
func MemoryDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// Servers builds rows for SetServers from ip/name pairs.
func Servers(pairs ...string) []Server {
	out := make([]Server, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Server{IP: pairs[i], Name: pairs[i+1]})
	}
	return out
}
