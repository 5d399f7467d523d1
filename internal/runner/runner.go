// Package runner drives the load lifecycle of the local store: schema
// creation, the initial population and scheduled reloads.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/lookupcache/internal/remote"
	"github.com/roach88/lookupcache/internal/schema"
	"github.com/roach88/lookupcache/internal/store"
)

var (
	// ErrAlreadyLoaded is returned by a second call to InitialLoad.
	ErrAlreadyLoaded = errors.New("initial load already ran")

	// ErrNotLoaded is returned by RepeatedLoad before InitialLoad.
	ErrNotLoaded = errors.New("initial load has not run")

	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("runner is stopped")
)

// LocalStore is the part of *store.Store the runner drives.
type LocalStore interface {
	BuildAll(ctx context.Context, objs []schema.Object) error
	RefreshAll(ctx context.Context, loaders []store.Fetcher) error
	Close() error
}

// Scheduler triggers reloads. *Schedule implements it.
type Scheduler interface {
	Start()
	Stop() context.Context
}

// Runner runs loaders against a local store.
//
// Thread-safety: all methods are safe for concurrent use. Loads are
// serialized; a tick that arrives while a load is running is skipped.
type Runner struct {
	store    LocalStore
	loaders  []store.Fetcher
	preload  []schema.Object
	postload []schema.Object
	mode     Mode

	mu        sync.Mutex // held for the duration of a load
	scheduler Scheduler

	// ctx bounds scheduled loads; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	loaded   atomic.Bool
	stopping atomic.Bool
	reloads  atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithMode sets single or repeating mode. The default is ModeSingle.
func WithMode(m Mode) Option {
	return func(r *Runner) { r.mode = m }
}

// New creates a runner in StateIdle. Post-load objects are always built
// create-if-absent, since they are rebuilt after every reload.
func New(st LocalStore, loaders []store.Fetcher, preload, postload []schema.Object, opts ...Option) *Runner {
	r := &Runner{
		store:   st,
		loaders: loaders,
		preload: preload,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	for _, o := range postload {
		r.postload = append(r.postload, o.Preserving())
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode returns the runner's mode.
func (r *Runner) Mode() Mode { return r.mode }

// State returns the current state.
func (r *Runner) State() State { return State(r.state.Load()) }

// ReloadCount returns the number of completed loads, the initial load
// included.
func (r *Runner) ReloadCount() int64 { return r.reloads.Load() }

// Stopped reports whether Stop has been called.
func (r *Runner) Stopped() bool { return r.stopping.Load() }

// InitialLoad builds the pre-load objects (tables, then indexes), refreshes
// every loader once and builds the post-load objects. It succeeds at most
// once; after a failure the runner is in StateFailed and InitialLoad may be
// called again.
//
// A loader whose query fails keeps its table as it was and the load still
// completes. An unreachable remote database or a failed swap fails the load.
func (r *Runner) InitialLoad(ctx context.Context) error {
	if r.stopping.Load() {
		return ErrStopped
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded.Load() {
		return ErrAlreadyLoaded
	}
	if err := r.initialLoad(ctx); err != nil {
		r.transition(StateFailed)
		return err
	}
	r.loaded.Store(true)

	r.transition(StateReady)
	r.reloads.Add(1)
	slog.Info("initial load complete", "loaders", len(r.loaders), "mode", r.mode.String())
	return nil
}

// RepeatedLoad refreshes every loader and rebuilds the post-load objects.
// Pre-load objects are not rebuilt. It is a no-op in ModeSingle.
func (r *Runner) RepeatedLoad(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repeatedLoad(ctx)
}

// OnTick is the scheduler entry point. It returns at once when the runner is
// stopped or a load is already running. Errors are logged.
func (r *Runner) OnTick() {
	if r.stopping.Load() {
		slog.Debug("tick ignored, runner is stopped")
		return
	}
	if !r.mu.TryLock() {
		slog.Warn("tick skipped, previous load still running")
		return
	}
	defer r.mu.Unlock()

	if r.stopping.Load() {
		return
	}
	if err := r.repeatedLoad(r.ctx); err != nil {
		slog.Error("scheduled load failed", "error", err)
	}
}

func (r *Runner) initialLoad(ctx context.Context) error {
	r.transition(StatePreloading)
	if err := r.store.BuildAll(ctx, r.preload); err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	r.transition(StatePopulating)
	if err := r.refresh(ctx); err != nil {
		return err
	}

	r.transition(StatePostloading)
	if err := r.store.BuildAll(ctx, r.postload); err != nil {
		return fmt.Errorf("postload: %w", err)
	}
	return nil
}

func (r *Runner) repeatedLoad(ctx context.Context) error {
	if r.mode == ModeSingle {
		return nil
	}
	if r.stopping.Load() {
		return ErrStopped
	}
	if !r.loaded.Load() {
		return ErrNotLoaded
	}

	r.transition(StateRepopulating)
	if err := r.refresh(ctx); err != nil {
		r.transition(StateFailed)
		return err
	}
	if err := r.store.BuildAll(ctx, r.postload); err != nil {
		r.transition(StateFailed)
		return fmt.Errorf("postload: %w", err)
	}

	r.transition(StateReady)
	n := r.reloads.Add(1)
	slog.Info("reload complete", "reload", n)
	return nil
}

// refresh runs every loader. A failed swap or an unreachable remote is
// returned; other loader errors keep the previous table contents and are
// logged.
func (r *Runner) refresh(ctx context.Context) error {
	err := r.store.RefreshAll(ctx, r.loaders)
	if err == nil {
		return nil
	}
	if store.IsFatalRefresh(err) || remote.IsConnectionError(err) {
		return fmt.Errorf("refresh: %w", err)
	}
	slog.Warn("some loaders did not refresh, their tables keep previous data", "error", err)
	return nil
}

// Attach sets the scheduler that Start starts and Stop stops.
func (r *Runner) Attach(s Scheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler = s
}

// Start starts the attached scheduler in ModeRepeating.
func (r *Runner) Start() {
	r.mu.Lock()
	s := r.scheduler
	r.mu.Unlock()

	if s == nil || r.mode != ModeRepeating || r.stopping.Load() {
		return
	}
	s.Start()
}

// Stop sets the stop flag, cancels a running scheduled load, stops the
// scheduler, waits for the load to return and closes the store. Later ticks
// are no-ops. Stop is idempotent.
func (r *Runner) Stop() error {
	if !r.stopping.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()

	r.mu.Lock()
	s := r.scheduler
	r.mu.Unlock()
	if s != nil {
		<-s.Stop().Done()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Store(int32(StateStopped))
	slog.Info("runner stopped", "reloads", r.reloads.Load())
	return r.store.Close()
}

// transition moves to the next state unless the runner has been stopped.
func (r *Runner) transition(to State) {
	for {
		cur := r.state.Load()
		if State(cur) == StateStopped {
			return
		}
		if r.state.CompareAndSwap(cur, int32(to)) {
			slog.Debug("runner state", "from", State(cur).String(), "to", to.String())
			return
		}
	}
}
