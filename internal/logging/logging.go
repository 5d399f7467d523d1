// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

// Options selects the log sinks.
type Options struct {
	// Level is debug, info, warn or error.
	Level string
	// Verbose forces debug level.
	Verbose bool
	// SeqURL, when set, also ships records to a Seq server.
	SeqURL string
	// Writer receives text records, normally stderr.
	Writer io.Writer
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup builds the logger, installs it as slog's default and returns a
// cleanup function that flushes the Seq sink.
func Setup(opts Options) (*slog.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	console := slog.NewTextHandler(opts.Writer, handlerOpts)

	if opts.SeqURL == "" {
		logger := slog.New(console)
		slog.SetDefault(logger)
		return logger, func() {}, nil
	}

	_, seqHandler := slogseq.NewLogger(
		opts.SeqURL,
		slogseq.WithBatchSize(50),
		slogseq.WithFlushInterval(500*time.Millisecond),
		slogseq.WithHandlerOptions(handlerOpts),
	)
	if seqHandler == nil {
		logger := slog.New(console)
		slog.SetDefault(logger)
		logger.Warn("seq sink unavailable, logging to console only", "url", opts.SeqURL)
		return logger, func() {}, nil
	}

	logger := slog.New(&multiHandler{handlers: []slog.Handler{console, seqHandler}})
	slog.SetDefault(logger)
	return logger, func() { seqHandler.Close() }, nil
}

// multiHandler forwards log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends r to every handler enabled at its level. All handlers are
// tried; their errors are joined.
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
