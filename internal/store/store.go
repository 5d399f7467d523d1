package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultMaxConns bounds the connection pool. A private ":memory:" store,
// which exists only inside one connection, always uses a single connection.
const DefaultMaxConns = 4

// Store is the local lookup cache: a SQLite database holding one live and
// one staging table per loader.
//
// A single RWMutex guards the table namespace. Fetch takes the shared mode.
// BuildSchema and the rename step of AtomicRefresh take the exclusive mode.
// sync.RWMutex blocks new readers once a writer is waiting, so a steady
// stream of lookups cannot starve a refresh. The lock is not reentrant and no
// method acquires it twice.
type Store struct {
	db     *sql.DB
	dsn    string
	memory bool
	// pin holds a shared-cache memory database open while the pool churns.
	pin *sql.Conn

	mu    sync.RWMutex
	names NameGenerator
	now   func() time.Time

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a Store.
type Option func(*Store)

// WithNameGenerator sets the source of scratch table names used during swaps.
func WithNameGenerator(g NameGenerator) Option {
	return func(s *Store) { s.names = g }
}

// WithClock sets the time source recorded in Stats.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the local store.
//
// dsn is a file path, a "file:" URI, or an in-memory URI such as
// "file:lookupcache?mode=memory&cache=shared". The database is configured
// with:
//   - WAL mode for file stores, so readers proceed during a bulk insert
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		dsn:    dsn,
		memory: isMemory(dsn),
		names:  UUIDNameGenerator{},
		now:    time.Now,
		stats:  Stats{Rows: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", withPragmas(dsn, s.memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to local store: %w", err)
	}

	// Shared-cache locks are per table, so readers of a live table proceed
	// while another connection fills its staging table. The database lives
	// only as long as some connection to it does.
	switch {
	case s.memory && !sharedCache(dsn):
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case s.memory:
		db.SetMaxOpenConns(DefaultMaxConns + 1)
		db.SetMaxIdleConns(DefaultMaxConns + 1)
		pin, err := db.Conn(context.Background())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to pin in-memory store: %w", err)
		}
		s.pin = pin
	default:
		db.SetMaxOpenConns(DefaultMaxConns)
		db.SetMaxIdleConns(DefaultMaxConns)
	}
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s.db = db
	return s, nil
}

// Close closes the database connection. It is safe to call more than once
// and from several goroutines.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if s.pin != nil {
		s.pin.Close()
		s.pin = nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DSN returns the data source the store was opened with.
func (s *Store) DSN() string {
	return s.dsn
}

// Memory reports whether the store is in-memory.
func (s *Store) Memory() bool {
	return s.memory
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func sharedCache(dsn string) bool {
	return strings.Contains(dsn, "cache=shared")
}

// withPragmas appends go-sqlite3 connection parameters so every pooled
// connection is configured, not just the first.
func withPragmas(dsn string, memory bool) string {
	params := []string{
		"_busy_timeout=5000",
		"_foreign_keys=on",
	}
	if !memory {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}

	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
