// Package lookup enriches events with rows from the local store.
//
// Each configured lookup binds values taken from the event to its query,
// runs the query under the store's read lock and writes the resulting rows
// to the target field. Lookup failures never escape as errors: they are
// reported by tagging the event, and a configured default value may be
// written in place of the missing rows.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/event"
)

// Querier runs a parameterized query against the local store.
// *store.Store implements it.
type Querier interface {
	Fetch(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Lookup is a compiled lookup descriptor. It is immutable and safe to share
// across goroutines; each event must be enhanced by one goroutine at a time.
type Lookup struct {
	cfg    config.Lookup
	query  compiledQuery
	params map[string]valueSource
}

// New compiles cfg. It fails when the query uses a bind marker with no
// configured parameter.
func New(cfg config.Lookup) (*Lookup, error) {
	q := compileQuery(cfg.Query)
	if err := q.check(cfg.Parameters); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", cfg.ID, err)
	}

	params := make(map[string]valueSource, len(cfg.Parameters))
	for name, raw := range cfg.Parameters {
		params[name] = newValueSource(raw)
	}
	return &Lookup{cfg: cfg, query: q, params: params}, nil
}

// ID returns the lookup id.
func (l *Lookup) ID() string { return l.cfg.ID }

// Target returns the field the rows are written to.
func (l *Lookup) Target() string { return l.cfg.Target }

// SQL returns the query as sent to the store.
func (l *Lookup) SQL() string { return l.query.SQL }

// Enhance runs the lookup for ev and reports whether ev was enriched or
// given the default value.
//
//   - Parameters that cannot be bound, or a failing query: tag_on_failure,
//     then the default if one is configured.
//   - No rows: the default (tagged tag_on_default_use) if configured,
//     otherwise ev is left untouched. FailOnEmpty also tags the failure.
//   - Rows: a copy of the rows is written to the target. Columns holding
//     values an event cannot carry are dropped, ev is tagged as failed and
//     Enhance returns false.
func (l *Lookup) Enhance(ctx context.Context, q Querier, ev *event.Event) bool {
	args, invalid := l.bind(ev)
	if len(invalid) > 0 {
		slog.Warn("lookup parameters cannot be bound, interpolation may have failed or the value is null, an array or a hash",
			"lookup", l.cfg.ID,
			"parameters", invalid,
		)
		l.tagFailure(ev)
		return l.applyDefault(ev)
	}

	rows, err := q.Fetch(ctx, l.query.SQL, args...)
	if err != nil {
		slog.Warn("lookup query failed", "lookup", l.cfg.ID, "error", err)
		l.tagFailure(ev)
		return l.applyDefault(ev)
	}

	if len(rows) == 0 {
		if l.cfg.FailOnEmpty {
			l.tagFailure(ev)
		}
		return l.applyDefault(ev)
	}

	payload, invalidCols := convertRows(rows)
	if err := ev.Set(l.cfg.Target, payload); err != nil {
		slog.Warn("lookup target cannot be set", "lookup", l.cfg.ID, "target", l.cfg.Target, "error", err)
		l.tagFailure(ev)
		return false
	}
	if len(invalidCols) > 0 {
		slog.Warn("lookup returned values that cannot be stored in an event",
			"lookup", l.cfg.ID,
			"columns", invalidCols,
		)
		l.tagFailure(ev)
		return false
	}
	return true
}

// bind resolves the arguments in placeholder order. The second result
// describes every parameter that could not be resolved.
func (l *Lookup) bind(ev *event.Event) ([]any, []string) {
	args := make([]any, 0, len(l.query.Binds))
	var invalid []string
	for _, name := range l.query.Binds {
		v, err := l.params[name].resolve(ev)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		args = append(args, v)
	}
	return args, invalid
}

func (l *Lookup) applyDefault(ev *event.Event) bool {
	if !l.cfg.UseDefault() {
		return false
	}
	value := event.DeepCopy([]any{l.cfg.DefaultHash})
	if err := ev.Set(l.cfg.Target, value); err != nil {
		slog.Warn("lookup default cannot be set", "lookup", l.cfg.ID, "target", l.cfg.Target, "error", err)
		return false
	}
	for _, tag := range l.cfg.TagOnDefaultUse {
		ev.Tag(tag)
	}
	return true
}

func (l *Lookup) tagFailure(ev *event.Event) {
	for _, tag := range l.cfg.TagOnFailure {
		ev.Tag(tag)
	}
}

// convertRows copies rows into event values. The second result names each
// column whose value type cannot be stored, once per column and type.
func convertRows(rows []map[string]any) ([]any, []string) {
	out := make([]any, 0, len(rows))
	seen := make(map[string]bool)
	var invalid []string
	for _, row := range rows {
		rec := make(map[string]any, len(row))
		for col, v := range row {
			conv, ok := convertColumn(v)
			if !ok {
				msg := fmt.Sprintf("%s: %T", col, v)
				if !seen[msg] {
					seen[msg] = true
					invalid = append(invalid, msg)
				}
				continue
			}
			rec[col] = conv
		}
		out = append(out, rec)
	}
	sort.Strings(invalid)
	return out, invalid
}
