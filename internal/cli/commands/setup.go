// Package commands implements the rdm subcommands.
package commands

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/rdm/internal/cli/config"
	"github.com/leapstack-labs/rdm/internal/cli/output"
	"github.com/leapstack-labs/rdm/internal/engine"
	"github.com/leapstack-labs/rdm/internal/source"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an engine for the project
// in dir. The cleanup function must be called, typically via defer.
func NewCommandContext(cmd *cobra.Command, dir string) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutEngine(cmd)

	eng, err := engine.New(engineConfig(cc.Cfg, dir, cc.Logger))
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cc.Logger.Warn("failed to close engine", "error", err.Error())
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext for commands that
// never load a project.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the loaded configuration, or defaults when the root
// command did not load one.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		OutputFormat: config.DefaultOutput,
		HTTP:         config.HTTPConfig{Timeout: config.DefaultTimeout, MaxRetries: config.DefaultMaxRetries},
	}
}

func engineConfig(cfg *config.Config, dir string, logger *slog.Logger) engine.Config {
	retries := cfg.HTTP.MaxRetries
	if retries == 0 {
		retries = -1 // source.ClientConfig treats 0 as the default
	}
	return engine.Config{
		Dir:         dir,
		DatabaseURL: cfg.DatabaseURL,
		Print: engine.PrintOptions{
			SQL:      cfg.Print.SQL,
			Values:   cfg.Print.Values,
			Columns:  cfg.Print.Columns,
			Rows:     cfg.Print.Rows,
			Affected: cfg.Print.Affected,
		},
		HTTP:   source.ClientConfig{Timeout: cfg.HTTP.Timeout, MaxRetries: retries},
		Logger: logger,
	}
}

// projectDir returns the first argument, or the working directory.
func projectDir(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "."
}

func itoa(n int) string { return strconv.Itoa(n) }

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
