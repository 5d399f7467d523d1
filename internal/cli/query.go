package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lookupcache/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	NoLoad bool
}

// QueryResult holds the rows of an ad hoc query.
type QueryResult struct {
	Rows  []store.Row `json:"rows"`
	Count int         `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run an ad hoc query against the local cache",
		Long: `Run a SQL statement against the local cache. Extra arguments bind to
'?' placeholders in order.

The cache is loaded first unless --no-load is given, in which case the
statement runs against whatever the configured local store already holds.

Example:
  lookupcache query --config lookups.yml "select * from servers where ip = ?" 10.0.0.1
  lookupcache query --config lookups.yml --no-load "select count(*) as n from servers"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoLoad, "no-load", false, "query the existing local store without loading it")

	return cmd
}

func runQuery(opts *QueryOptions, query string, rawArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var st *store.Store
	if opts.NoLoad {
		st, err = store.Open(cfg.LocalDSN)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, "failed to open local store", err.Error())
			return WrapExitError(ExitFailure, "failed to open local store", err)
		}
		defer st.Close()
	} else {
		c, err := openCache(ctx, cfg, formatter)
		if err != nil {
			return err
		}
		defer func() {
			if stopErr := c.runner.Stop(); stopErr != nil {
				slog.Error("error closing local store", "error", stopErr)
			}
		}()
		st = c.store
	}

	args := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		args[i] = a
	}

	rows, err := st.Fetch(ctx, query, args...)
	if err != nil {
		_ = formatter.Error(ErrCodeQueryFailed, "query failed", err.Error())
		return WrapExitError(ExitFailure, "query failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(QueryResult{Rows: rows, Count: len(rows)})
	}

	// One JSON object per row
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode row", err)
		}
		fmt.Fprintln(formatter.Writer, string(line))
	}
	formatter.VerboseLog("%d row(s)", len(rows))
	return nil
}
