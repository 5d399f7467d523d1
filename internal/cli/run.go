package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lookupcache/internal/event"
	"github.com/roach88/lookupcache/internal/lookup"
	"github.com/roach88/lookupcache/internal/runner"
)

// maxEventSize bounds a single input line.
const maxEventSize = 16 << 20

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input string
}

// RunStats counts what happened to the input stream.
type RunStats struct {
	Events    int `json:"events"`
	Matched   int `json:"matched"`
	Malformed int `json:"malformed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the cache and enrich a stream of JSON events",
		Long: `Load the local cache, then read one JSON event per line from stdin (or
--input), run every lookup against it and write the enriched event to
stdout as one JSON line.

When the configuration has a schedule, loaders are re-run on it while
events flow. SIGINT or SIGTERM stops the run; in-flight loads finish first.

Example:
  tail -F events.jsonl | lookupcache run --config lookups.yml
  lookupcache run --config lookups.cue --input events.jsonl --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "read events from this file instead of stdin")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	formatter.Writer = cmd.ErrOrStderr() // stdout carries events

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	in := cmd.InOrStdin()
	if opts.Input != "" {
		file, err := os.Open(opts.Input)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("input file not found: %s", opts.Input), nil)
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer file.Close()
		in = file
	}

	c, err := openCache(ctx, cfg, formatter)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := c.runner.Stop(); stopErr != nil {
			slog.Error("error closing local store", "error", stopErr)
		}
	}()

	proc, err := lookup.NewProcessor(c.store, cfg.Lookups)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidConfig, "invalid lookups", err.Error())
		return WrapExitError(ExitFailure, "invalid lookups", err)
	}

	if cfg.Repeating() {
		sched, err := runner.NewSchedule(cfg.Schedule, c.runner)
		if err != nil {
			return WrapExitError(ExitFailure, "invalid schedule", err)
		}
		c.runner.Attach(sched)
		c.runner.Start()
	}

	slog.Info("enriching events", "lookups", len(proc.Lookups()), "mode", c.runner.Mode().String())
	stats, err := enrich(ctx, proc, in, cmd.OutOrStdout())
	slog.Info("run finished",
		"events", stats.Events,
		"matched", stats.Matched,
		"malformed", stats.Malformed,
		"reloads", c.runner.ReloadCount(),
		"table_refreshes", c.store.Stats().Refreshes,
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		_ = formatter.Error(ErrCodeBadInput, "failed to process events", err.Error())
		return WrapExitError(ExitFailure, "failed to process events", err)
	}
	return nil
}

// enrich copies events from r to w, one JSON object per line, running proc
// on each. Blank lines are skipped and lines that are not JSON objects are
// logged and dropped. It returns when r is exhausted or ctx is done.
func enrich(ctx context.Context, proc *lookup.Processor, r io.Reader, w io.Writer) (RunStats, error) {
	var stats RunStats

	lines := make(chan []byte)
	scanDone := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			scanDone <- err
			close(lines)
		}()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
		}
		err = sc.Err()
	}()

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return stats, <-scanDone
			}
			lineNo++
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			ev := event.New(nil)
			if err := ev.UnmarshalJSON(line); err != nil {
				slog.Warn("skipping malformed event", "line", lineNo, "error", err)
				stats.Malformed++
				continue
			}

			stats.Events++
			if proc.Enhance(ctx, ev) {
				stats.Matched++
			}

			out, err := ev.MarshalJSON()
			if err != nil {
				return stats, fmt.Errorf("encode event on line %d: %w", lineNo, err)
			}
			if _, err := w.Write(append(out, '\n')); err != nil {
				return stats, fmt.Errorf("write event: %w", err)
			}
		}
	}
}
