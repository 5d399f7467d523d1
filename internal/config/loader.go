package config

import (
	"fmt"
	"time"

	"github.com/roach88/lookupcache/internal/schema"
)

// DefaultMaxRows bounds a loader's snapshot when max_rows is not configured.
const DefaultMaxRows = 1_000_000

// DefaultRemoteDriver is the database/sql driver used by loaders that do not
// name one.
const DefaultRemoteDriver = "sqlite3"

// Connection identifies a remote database/sql data source.
type Connection struct {
	Driver string `json:"driver"`
	DSN    string `json:"-"`
	// QueryTimeout bounds each remote statement; zero means no bound.
	QueryTimeout time.Duration `json:"query_timeout,omitempty"`
}

// Loader describes one remote query that populates one local table.
// It is built once at startup and shared read-only.
type Loader struct {
	ID         string     `json:"id"`
	LocalTable string     `json:"local_table"`
	Query      string     `json:"query"`
	MaxRows    int        `json:"max_rows"`
	Connection Connection `json:"connection"`
}

// TempTable is the staging table that receives the next snapshot.
func (l Loader) TempTable() string {
	return schema.TempPrefix + l.LocalTable
}

// ParseLoader parses a loader descriptor:
//
//	{id: servers_load, local_table: servers, query: "select ...", max_rows: 1000}
//
// Connection settings missing from the descriptor are taken from defaults.
// All problems are accumulated.
func ParseLoader(raw any, defaults Connection) (Loader, []error) {
	opts, ok := raw.(map[string]any)
	if !ok {
		return Loader{}, []error{newError(ErrNotAMap, "loader", "The loader options must be a map")}
	}

	var errs []error
	l := Loader{MaxRows: DefaultMaxRows, Connection: defaults}

	table, ok := opts["local_table"].(string)
	if !ok || table == "" {
		errs = append(errs, newError(ErrMissingField, "local_table", "The options must include a 'local_table' string"))
	}
	l.LocalTable = table

	l.ID = table
	if id, present := opts["id"]; present {
		s, ok := id.(string)
		if !ok {
			errs = append(errs, newError(ErrWrongType, "id", "The 'id' option for '%s' must be a string", table))
		} else {
			l.ID = s
		}
	}

	query, ok := opts["query"].(string)
	if !ok || query == "" {
		errs = append(errs, newError(ErrMissingField, "query", "The options for '%s' must include a 'query' string", table))
	}
	l.Query = query

	if raw, present := opts["max_rows"]; present {
		n, ok := toInt(raw)
		switch {
		case !ok:
			errs = append(errs, newError(ErrWrongType, "max_rows", "The 'max_rows' option for '%s' must be an integer", table))
		case n < 0:
			errs = append(errs, newError(ErrWrongType, "max_rows", "The 'max_rows' option for '%s' must not be negative", table))
		default:
			l.MaxRows = n
		}
	}

	if raw, present := opts["jdbc_driver"]; present {
		s, ok := raw.(string)
		if !ok || s == "" {
			errs = append(errs, newError(ErrWrongType, "jdbc_driver", "The 'jdbc_driver' option for '%s' must be a string", table))
		} else {
			l.Connection.Driver = s
		}
	}

	if raw, present := opts["jdbc_connection_string"]; present {
		s, ok := raw.(string)
		if !ok {
			errs = append(errs, newError(ErrWrongType, "jdbc_connection_string", "The 'jdbc_connection_string' option for '%s' must be a string", table))
		} else {
			l.Connection.DSN = s
		}
	}

	if raw, present := opts["query_timeout"]; present {
		d, err := toDuration(raw)
		if err != nil {
			errs = append(errs, newError(ErrWrongType, "query_timeout", "The 'query_timeout' option for '%s' must be a duration: %v", table, err))
		} else {
			l.Connection.QueryTimeout = d
		}
	}

	if l.Connection.DSN == "" {
		errs = append(errs, newError(ErrMissingField, "jdbc_connection_string", "The loader '%s' has no remote connection string", l.ID))
	}

	if len(errs) > 0 {
		return Loader{}, errs
	}
	return l, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err != nil || fmt.Sprint(i) != n {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		return time.ParseDuration(d)
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}
