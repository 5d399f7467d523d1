package lookup

import (
	"context"
	"errors"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/event"
)

// Processor runs every configured lookup against one store.
type Processor struct {
	querier Querier
	lookups []*Lookup
}

// NewProcessor compiles cfgs. All compile errors are reported together.
func NewProcessor(q Querier, cfgs []config.Lookup) (*Processor, error) {
	p := &Processor{querier: q}
	var errs []error
	for _, cfg := range cfgs {
		l, err := New(cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.lookups = append(p.lookups, l)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// Lookups returns the compiled lookups in configured order.
func (p *Processor) Lookups() []*Lookup {
	return p.lookups
}

// Enhance runs each lookup in order. A failing lookup does not stop the
// others. It reports whether every lookup succeeded.
func (p *Processor) Enhance(ctx context.Context, ev *event.Event) bool {
	matched := true
	for _, l := range p.lookups {
		if !l.Enhance(ctx, p.querier, ev) {
			matched = false
		}
	}
	return matched
}
