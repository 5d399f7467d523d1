package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/lookupcache/internal/config"
	"github.com/roach88/lookupcache/internal/runner"
	"github.com/roach88/lookupcache/internal/store"
)

// loadConfig reads and parses opts.Config, reporting problems through f.
// The returned error is an *ExitError.
func loadConfig(opts *RootOptions, f *OutputFormatter) (*config.Config, error) {
	if opts.Config == "" {
		_ = f.Error(ErrCodeNoConfig, "no configuration file: pass --config or set "+EnvPrefix+"_CONFIG", nil)
		return nil, NewExitError(ExitCommandError, "no configuration file")
	}
	if _, err := os.Stat(opts.Config); err != nil {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("configuration file not found: %s", opts.Config), nil)
		return nil, WrapExitError(ExitCommandError, "configuration file not found", err)
	}

	f.VerboseLog("Loading configuration from %s", opts.Config)
	cfg, errs := config.Load(opts.Config)
	if len(errs) > 0 {
		_ = f.Error(ErrCodeInvalidConfig, "configuration is invalid", errorStrings(errs))
		return nil, WrapExitError(ExitFailure, "configuration is invalid", errors.Join(errs...))
	}
	return cfg, nil
}

// cache is a local store that has been through its initial load.
type cache struct {
	store  *store.Store
	runner *runner.Runner
}

// openCache opens cfg's local store and runs the initial load. Close the
// cache with c.runner.Stop.
func openCache(ctx context.Context, cfg *config.Config, f *OutputFormatter) (*cache, error) {
	st, err := store.Open(cfg.LocalDSN)
	if err != nil {
		_ = f.Error(ErrCodeStoreFailed, "failed to open local store", err.Error())
		return nil, WrapExitError(ExitFailure, "failed to open local store", err)
	}

	r := runner.FromConfig(cfg, st)
	f.VerboseLog("Loading %d loader(s) into %s", len(cfg.Loaders), cfg.LocalDSN)
	if err := r.InitialLoad(ctx); err != nil {
		_ = r.Stop()
		_ = f.Error(ErrCodeLoadFailed, "initial load failed", err.Error())
		return nil, WrapExitError(ExitFailure, "initial load failed", err)
	}
	return &cache{store: st, runner: r}, nil
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
