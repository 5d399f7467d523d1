package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lookupcache/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Loaders int      `json:"loaders"`
	Lookups int      `json:"lookups"`
	Objects int      `json:"objects"`
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without touching any database",
		Long: `Parse the configuration given with --config and report every problem
in every schema object, loader and lookup, in a stable order.

Exits 1 when the configuration is invalid.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if opts.Config == "" {
		_ = formatter.Error(ErrCodeNoConfig, "no configuration file: pass --config or set "+EnvPrefix+"_CONFIG", nil)
		return NewExitError(ExitCommandError, "no configuration file")
	}

	formatter.VerboseLog("Validating %s", opts.Config)
	cfg, errs := config.Load(opts.Config)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errorStrings(errs))
	}

	return formatter.Success(ValidationResult{
		Valid:   true,
		Loaders: len(cfg.Loaders),
		Lookups: len(cfg.Lookups),
		Objects: len(cfg.Objects) + len(cfg.PostLoadObjects),
	})
}

// String renders the text form of a successful validation.
func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ Configuration valid: %d loader(s), %d lookup(s), %d schema object(s)", r.Loaders, r.Lookups, r.Objects)
}

// outputValidationErrors reports every problem and fails with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, errs []string) error {
	if formatter.Format == "json" {
		if err := formatter.Error(ErrCodeInvalidConfig, "configuration is invalid", ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Configuration invalid (%d problem(s)):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s\n", e)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("configuration is invalid: %d problem(s)", len(errs)))
}
