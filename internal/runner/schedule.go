package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Trigger receives scheduler ticks. *Runner implements it.
type Trigger interface {
	OnTick()
}

// Schedule fires a Trigger on a standard five-field cron expression. A tick
// that comes due while the previous one is still running is skipped.
type Schedule struct {
	spec string
	cron *cron.Cron
}

// NewSchedule parses spec and binds it to t. The schedule is not started.
func NewSchedule(spec string, t Trigger) (*Schedule, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, t.OnTick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Schedule{spec: spec, cron: c}, nil
}

// Spec returns the cron expression.
func (s *Schedule) Spec() string { return s.spec }

// Start runs the scheduler in its own goroutine.
func (s *Schedule) Start() {
	slog.Info("scheduler started", "schedule", s.spec)
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once a running
// tick has finished.
func (s *Schedule) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
