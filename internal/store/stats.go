package store

import (
	"maps"
	"time"
)

// Stats summarizes completed refreshes.
type Stats struct {
	Refreshes   int64          `json:"refreshes"`
	LastRefresh time.Time      `json:"last_refresh,omitzero"`
	Rows        map[string]int `json:"rows"`
}

// Stats returns a copy of the refresh statistics.
func (s *Store) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	out := s.stats
	out.Rows = maps.Clone(s.stats.Rows)
	return out
}

func (s *Store) record(table string, rows int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Refreshes++
	s.stats.LastRefresh = s.now().UTC()
	s.stats.Rows[table] = rows
}
