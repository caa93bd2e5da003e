// Package cli provides the command-line interface for rdm.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/rdm/internal/cli/commands"
	"github.com/leapstack-labs/rdm/internal/cli/config"
	"github.com/leapstack-labs/rdm/internal/cli/output"
	"github.com/leapstack-labs/rdm/internal/compiler"
	"github.com/leapstack-labs/rdm/internal/dag"
	"github.com/leapstack-labs/rdm/pkg/adapter"

	// Register database adapters.
	_ "github.com/leapstack-labs/rdm/pkg/adapters/postgres"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rdm",
		Short: "rdm - declarative data migrations for PostgreSQL",
		Long: `rdm reads rows from files or HTTP endpoints and writes them into
PostgreSQL tables as described by an rdm.json manifest.

Every migration compiles into one statement, a chain of CTEs that fills
each table in dependency order, so a run either succeeds as a whole or
changes nothing.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if f := config.GetConfigFileUsed(); f != "" {
				logger.Debug("using config file", "path", f)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./rdm.config.yaml)")
	flags.String("database-url", "", "PostgreSQL URL, overrides output.database.url")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	flags.Bool("print-sql", false, "Log the compiled SQL of each run")
	flags.Bool("print-values", false, "Log the bound parameter values of each run")
	flags.Bool("print-columns", false, "Log the input columns of each run")
	flags.Bool("print-rows", false, "Log the projected input rows of each run")
	flags.Bool("print-affected", false, "Log the affected row count of each run")
	flags.Duration("http-timeout", config.DefaultTimeout, "Per-request timeout for http sources")
	flags.Int("http-max-retries", config.DefaultMaxRetries, "Retries for failed http source requests")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, Commit: GitCommit, BuildDate: BuildDate}))
	rootCmd.AddCommand(commands.NewApplyCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		if cfg := config.GetCurrentConfig(); cfg != nil {
			verbose = verbose || cfg.Verbose
		}
		PrintError(os.Stderr, err, verbose)
		return err
	}
	return nil
}

// PrintError writes err as one line, or with its wrapped chain and typed
// details when verbose.
func PrintError(w io.Writer, err error, verbose bool) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	if !verbose {
		return
	}

	var (
		cycle    *dag.CyclicDependencyError
		dbErr    *adapter.DatabaseError
		strategy *compiler.UnknownStrategyError
	)
	switch {
	case errors.As(err, &cycle):
		_, _ = fmt.Fprintf(w, "  cycle: %v\n", cycle.Nodes)
	case errors.As(err, &dbErr):
		_, _ = fmt.Fprintf(w, "  sqlstate: %s\n", dbErr.Code)
		if dbErr.Detail != "" {
			_, _ = fmt.Fprintf(w, "  detail: %s\n", dbErr.Detail)
		}
		if dbErr.Constraint != "" {
			_, _ = fmt.Fprintf(w, "  constraint: %s\n", dbErr.Constraint)
		}
		if dbErr.UniqueViolation() {
			_, _ = fmt.Fprintf(w, "  hint: a row with this key already exists; tables with failIfExists reject it, use strategy upsert to overwrite\n")
		}
	case errors.As(err, &strategy):
		_, _ = fmt.Fprintf(w, "  valid strategies: insert, update, upsert\n")
	}

	depth := 0
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		depth++
		_, _ = fmt.Fprintf(w, "  %d: %T: %v\n", depth, e, e)
	}
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for rdm.

To load completions:

Bash:
  $ source <(rdm completion bash)

Zsh:
  $ rdm completion zsh > "${fpath[1]}/_rdm"

Fish:
  $ rdm completion fish | source

PowerShell:
  PS> rdm completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
