package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/rdm/internal/compiler"
	"github.com/leapstack-labs/rdm/internal/manifest"
)

// Result describes one applied run.
type Result struct {
	RunID    string
	Plan     *compiler.Plan
	Affected int64
	Duration time.Duration
}

// Plan fetches the input rows and compiles them without touching the
// database, so no column casts are applied.
func (e *Engine) Plan(ctx context.Context) (*compiler.Plan, error) {
	m := e.Manifest()
	return e.compile(ctx, m, nil, e.logger)
}

// Apply runs the full cycle: fetch, read column types, compile, execute.
func (e *Engine) Apply(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := e.logger.With("run_id", runID)
	logger.Info("starting run")

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	m := e.Manifest()
	types, err := e.db.ColumnTypes(ctx, m.Output.TableSet().Names())
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	plan, err := e.compile(ctx, m, types, logger)
	if err != nil {
		logger.Error("run failed", "error", err.Error())
		return nil, err
	}

	affected, err := e.db.Execute(ctx, plan.SQL, plan.Params)
	if err != nil {
		logger.Error("run failed", "error", err.Error())
		return nil, fmt.Errorf("failed to execute migration: %w", err)
	}

	res := &Result{RunID: runID, Plan: plan, Affected: affected, Duration: time.Since(start)}
	if e.cfg.Print.Affected {
		logger.Info("affected rows", "count", affected)
	}
	logger.Info("run completed", "tables", len(plan.Order), "duration", res.Duration.String())
	return res, nil
}

func (e *Engine) compile(ctx context.Context, m *manifest.Manifest, types map[string]map[string]string, logger *slog.Logger) (*compiler.Plan, error) {
	input, err := e.fetcher.FetchAll(ctx, m, e.env)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows: %w", err)
	}

	plan, err := compiler.Compile(m, input, compiler.Options{
		Env:         e.env,
		ColumnTypes: types,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	e.printPlan(logger, plan)
	return plan, nil
}

func (e *Engine) printPlan(logger *slog.Logger, plan *compiler.Plan) {
	p := e.cfg.Print
	if p.Columns {
		logger.Info("dataset columns", "columns", plan.Columns)
	}
	if p.Rows {
		logger.Info("dataset rows", "count", len(plan.Rows), "rows", plan.Rows)
	}
	if p.SQL {
		logger.Info("query sql", "sql", plan.SQL)
	}
	if p.Values {
		logger.Info("query values", "values", plan.Params)
	}
}
