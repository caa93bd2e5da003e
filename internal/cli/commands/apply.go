package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/rdm/internal/cli/output"
	"github.com/leapstack-labs/rdm/internal/engine"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand() *cobra.Command {
	var (
		watch    bool
		once     bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "apply [path]",
		Short: "Run a migration against its database",
		Long: `Fetch the input rows, compile the manifest and execute the resulting
statement. Every table is written by one statement, so the run either
succeeds as a whole or changes nothing.

When the manifest declares a cron expression the migration runs on that
schedule until interrupted; --once runs it a single time instead.
With --watch the migration re-runs whenever the manifest or a data file
in the project directory changes.`,
		Example: `  # Run the project in the current directory
  rdm apply

  # Run once, ignoring the manifest's cron schedule
  rdm apply ./migrations/users --once

  # Re-run on every change
  rdm apply --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, projectDir(args))
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch {
			case watch:
				return cc.Engine.Watch(ctx, debounce, func(res *engine.Result, err error) {
					if err == nil {
						reportApply(cc.Renderer, res)
						return
					}
					cc.Renderer.Error(err.Error())
				})
			case cc.Engine.Manifest().Cron != "" && !once:
				cc.Renderer.Muted("Running on schedule " + cc.Engine.Manifest().Cron + ", press Ctrl+C to stop")
				return cc.Engine.Schedule(ctx, cc.Engine.Manifest().Cron)
			default:
				return applyOnce(ctx, cc)
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run when the manifest or data files change")
	cmd.Flags().BoolVar(&once, "once", false, "Run once even when the manifest declares a cron schedule")
	cmd.Flags().DurationVar(&debounce, "debounce", engine.DefaultDebounce, "Quiet period before a watched change triggers a run")
	return cmd
}

func applyOnce(ctx context.Context, cc *CommandContext) error {
	res, err := cc.Engine.Apply(ctx)
	if err != nil {
		return err
	}
	reportApply(cc.Renderer, res)
	return nil
}

func reportApply(r *output.Renderer, res *engine.Result) {
	out := output.ApplyOutput{
		RunID:      res.RunID,
		Tables:     res.Plan.Order,
		Rows:       len(res.Plan.Rows),
		Affected:   res.Affected,
		DurationMS: res.Duration.Milliseconds(),
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		_ = r.JSON(out)
	case output.ModeMarkdown:
		r.Header(2, "Migration applied")
		r.Println(output.FormatKeyValue("Run", out.RunID))
		r.Println(output.FormatKeyValue("Tables", joinOrDash(out.Tables)))
		r.Println(output.FormatKeyValue("Rows", itoa(out.Rows)))
		r.Println(output.FormatKeyValue("Duration", output.FormatDuration(out.DurationMS)))
		r.Println("")
	default:
		r.Success("Migrated " + itoa(out.Rows) + " rows into " + joinOrDash(out.Tables) +
			r.Styles().Muted.Render(" ("+output.FormatDuration(out.DurationMS)+")"))
	}
}
