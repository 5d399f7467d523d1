package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lookupcache/internal/store"
)

// TableCount is the row count of one loaded table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// LoadResult summarizes an initial load.
type LoadResult struct {
	Tables  []TableCount `json:"tables"`
	Reloads int64        `json:"reloads"`
	Stats   store.Stats  `json:"stats"`
}

// String renders one line per table.
func (r LoadResult) String() string {
	var b strings.Builder
	for i, t := range r.Tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %d rows", t.Table, t.Rows)
	}
	if r.Stats.Refreshes > 0 {
		fmt.Fprintf(&b, "\n%d table refresh(es), last at %s", r.Stats.Refreshes, r.Stats.LastRefresh.Format(time.RFC3339))
	}
	return b.String()
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Build the local schema and run every loader once",
		Long: `Create the local schema objects, copy each loader's remote query into its
local table, build the post-load objects and print the resulting row counts.

With a file-backed lookup_connection_string the loaded cache stays on disk
for later 'query --no-load' runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd)
		},
	}

	return cmd
}

func runLoad(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
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

	result := LoadResult{Reloads: c.runner.ReloadCount(), Stats: c.store.Stats()}
	for _, l := range cfg.Loaders {
		n, err := c.store.Count(ctx, l.LocalTable)
		if err != nil {
			_ = formatter.Error(ErrCodeQueryFailed, "failed to count rows", err.Error())
			return WrapExitError(ExitFailure, "failed to count rows", err)
		}
		result.Tables = append(result.Tables, TableCount{Table: l.LocalTable, Rows: n})
	}

	return formatter.Success(result)
}
