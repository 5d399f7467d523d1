package remote

import (
	"database/sql"
	"fmt"
	"time"
)

// Snapshot is the full result set of one loader query.
// Rows hold values positionally in Columns order.
type Snapshot struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Empty reports whether the snapshot carries no rows.
func (s *Snapshot) Empty() bool {
	return s.Len() == 0
}

// Records returns each row as a column-keyed map.
func (s *Snapshot) Records() []map[string]any {
	if s == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(s.Rows))
	for _, row := range s.Rows {
		rec := make(map[string]any, len(s.Columns))
		for i, col := range s.Columns {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// ScanRows drains rows into a Snapshot. Driver byte slices are converted to
// strings so values survive the driver's buffer reuse.
func ScanRows(rows *sql.Rows) (*Snapshot, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	snap := &Snapshot{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		snap.Rows = append(snap.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return snap, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
