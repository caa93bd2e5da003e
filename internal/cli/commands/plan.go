package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/rdm/internal/cli/output"
	"github.com/leapstack-labs/rdm/internal/compiler"
	"github.com/leapstack-labs/rdm/internal/manifest"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var showParams bool

	cmd := &cobra.Command{
		Use:   "plan [path]",
		Short: "Compile a migration without running it",
		Long: `Fetch the input rows and compile the manifest into its single SQL
statement, then print the target tables in execution order and the SQL.

The database is never contacted, so column casts are not applied.`,
		Example: `  # Plan the project in the current directory
  rdm plan

  # Include the bound parameter values
  rdm plan ./migrations/users --params

  # Output as JSON
  rdm plan --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, projectDir(args))
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := cc.Engine.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return renderPlan(cc.Renderer, cc.Engine.Manifest(), plan, showParams)
		},
	}

	cmd.Flags().BoolVar(&showParams, "params", false, "Print bound parameter values")
	return cmd
}

// planSteps lists the target tables by dependency depth. A table reading
// only the base relation sits at level 0; otherwise it sits one level below
// its deepest parent table.
func planSteps(m *manifest.Manifest, plan *compiler.Plan) ([]output.TableStep, error) {
	tables := m.ResolveAliases().Output.TableSet()
	depth := make(map[string]int, len(plan.Order))
	steps := make([]output.TableStep, 0, len(plan.Order))
	for _, name := range plan.Order {
		table, ok := tables.Get(name)
		if !ok {
			return nil, fmt.Errorf("table %q missing from manifest", name)
		}
		deps := slices.DeleteFunc(slices.Clone(plan.Graph.GetParents(name)), func(p string) bool {
			return p == manifest.BaseRelation
		})
		level := 0
		for _, d := range deps {
			level = max(level, depth[d]+1)
		}
		depth[name] = level
		steps = append(steps, output.TableStep{
			Level:     level,
			Table:     name,
			Strategy:  string(table.Strategy),
			Keys:      table.UniqueConstraint,
			DependsOn: deps,
		})
	}
	slices.SortStableFunc(steps, func(a, b output.TableStep) int { return a.Level - b.Level })
	return steps, nil
}

func renderPlan(r *output.Renderer, m *manifest.Manifest, plan *compiler.Plan, showParams bool) error {
	steps, err := planSteps(m, plan)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := output.PlanOutput{Tables: steps, Columns: plan.Columns, Rows: len(plan.Rows), SQL: plan.SQL}
		if showParams {
			out.Params = plan.Params
		}
		return r.JSON(out)

	case output.ModeMarkdown:
		r.Header(1, "Migration Plan")
		r.Println(output.FormatKeyValue("Tables", fmt.Sprintf("%d", len(plan.Order))))
		r.Println(output.FormatKeyValue("Rows", fmt.Sprintf("%d", len(plan.Rows))))
		r.Println("")
		r.RenderSteps(steps)
		r.Println("")
		r.Header(2, "SQL")
		r.Println(output.FormatCodeBlock("sql", plan.SQL))
		if showParams {
			r.Println("")
			r.Header(2, "Parameters")
			r.Println(output.FormatCodeBlock("", strings.Join(paramLines(plan.Params), "\n")))
		}

	default:
		styles := r.Styles()
		r.Header(1, "Migration Plan")
		r.Println(styles.Muted.Render(fmt.Sprintf("%d tables, %d rows, %d columns", len(plan.Order), len(plan.Rows), len(plan.Columns))))
		r.Println("")
		r.RenderSteps(steps)
		r.Println("")
		r.Header(2, "SQL")
		r.Println(styles.Code.Render(plan.SQL))
		if showParams {
			r.Println("")
			r.Header(2, "Parameters")
			for _, line := range paramLines(plan.Params) {
				r.Println("  " + line)
			}
		}
	}
	return nil
}

func paramLines(params []any) []string {
	lines := make([]string, len(params))
	for i, p := range params {
		lines[i] = fmt.Sprintf("$%d = %v", i+1, p)
	}
	return lines
}
