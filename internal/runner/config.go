package runner

import (
	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/remote"
	"github.com/roach88/lookupcache/internal/store"
)

// FromConfig builds a runner for cfg's loaders and schema objects. The mode
// is repeating when cfg has a schedule.
func FromConfig(cfg *config.Config, st LocalStore) *Runner {
	loaders := make([]store.Fetcher, 0, len(cfg.Loaders))
	for _, l := range cfg.Loaders {
		loaders = append(loaders, remote.NewLoader(l))
	}

	mode := ModeSingle
	if cfg.Repeating() {
		mode = ModeRepeating
	}
	return New(st, loaders, cfg.Objects, cfg.PostLoadObjects, WithMode(mode))
}
