package remote

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/lookupcache/internal/config"
)

// Source is a remote database that a loader reads from.
type Source interface {
	Connect(ctx context.Context) error
	Count(ctx context.Context, query string) (int, error)
	Query(ctx context.Context, query string) (*Snapshot, error)
	Disconnect() error
}

// Database is a Source backed by a database/sql driver. The driver must be
// registered by the binary (sqlite3 and duckdb are linked into lookupcache).
type Database struct {
	conn config.Connection
	db   *sql.DB
}

// NewDatabase returns an unconnected Database.
func NewDatabase(conn config.Connection) *Database {
	return &Database{conn: conn}
}

// Connect opens the pool and verifies the server is reachable.
func (d *Database) Connect(ctx context.Context) error {
	if d.db != nil {
		return nil
	}
	db, err := sql.Open(d.conn.Driver, d.conn.DSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.conn.Driver, err)
	}

	ctx, cancel := d.bound(ctx)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", d.conn.Driver, err)
	}

	d.db = db
	return nil
}

// Count returns the number of rows query would produce.
func (d *Database) Count(ctx context.Context, query string) (int, error) {
	if d.db == nil {
		return 0, fmt.Errorf("not connected")
	}
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var n int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS count_query", trimStatement(query))
	if err := d.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Query runs query and drains the full result set.
func (d *Database) Query(ctx context.Context, query string) (*Snapshot, error) {
	if d.db == nil {
		return nil, fmt.Errorf("not connected")
	}
	ctx, cancel := d.bound(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, trimStatement(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows)
}

// Disconnect closes the pool. It is safe to call when not connected.
func (d *Database) Disconnect() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *Database) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.conn.QueryTimeout > 0 {
		return context.WithTimeout(ctx, d.conn.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

func trimStatement(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), ";")
}
