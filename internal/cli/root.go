package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/lookupcache/internal/logging"
)

// EnvPrefix prefixes environment variables that override global flags,
// e.g. LOOKUPCACHE_CONFIG or LOOKUPCACHE_SEQ_URL.
const EnvPrefix = "LOOKUPCACHE"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	LogLevel string
	SeqURL   string

	cleanup func()
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lookupcache CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "lookupcache",
		Short: "Local lookup cache for event enrichment",
		Long: `Load reference data from a remote database into a local SQLite cache
and enrich JSON events with parameterized lookups against it.

Settings come from flags or LOOKUPCACHE_* environment variables; the
lookup configuration itself is a YAML or CUE document passed with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.resolve(v)
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			_, cleanup, err := logging.Setup(logging.Options{
				Level:   opts.LogLevel,
				Verbose: opts.Verbose,
				SeqURL:  opts.SeqURL,
				Writer:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid logging options", err)
			}
			opts.cleanup = cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.cleanup != nil {
				opts.cleanup()
			}
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.Config, "config", "c", "", "path to the lookup configuration (.yml or .cue)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	pf.StringVar(&opts.SeqURL, "seq-url", "", "also ship logs to this Seq server")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"verbose", "format", "config", "log-level", "seq-url"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// resolve copies flag values, or their environment overrides, out of v.
func (o *RootOptions) resolve(v *viper.Viper) {
	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.Config = v.GetString("config")
	o.LogLevel = v.GetString("log-level")
	o.SeqURL = v.GetString("seq-url")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
