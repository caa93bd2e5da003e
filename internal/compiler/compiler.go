// Package compiler turns a manifest and its input rows into one PostgreSQL
// statement: a chain of CTEs that populates every target table, in dependency
// order, inside a single atomic statement.
package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/rdm/internal/dag"
	"github.com/leapstack-labs/rdm/internal/expr"
	"github.com/leapstack-labs/rdm/internal/manifest"
	"github.com/leapstack-labs/rdm/internal/rows"
	"github.com/leapstack-labs/rdm/internal/sqlgen"
)

// DefaultCTEPrefix prefixes every CTE name. The base relation becomes cte__.
const DefaultCTEPrefix = "cte_"

// Terminal is the statement the CTE chain is attached to.
const Terminal = "select 1"

// Options tunes a compilation.
type Options struct {
	// Env resolves env.NAME assignments. Nil resolves every name to "".
	Env expr.Env
	// ColumnTypes maps table -> column -> database type. Types of columns fed
	// straight from the input rows become casts on the values placeholders.
	ColumnTypes map[string]map[string]string
	// CTEPrefix defaults to DefaultCTEPrefix.
	CTEPrefix string
	Logger    *slog.Logger
}

// Plan is a compiled migration.
type Plan struct {
	SQL    string
	Params []any
	CTEs   []sqlgen.CTE
	// Order lists the target tables in the order their CTEs are emitted.
	Order []string
	// Columns are the input columns selected into the base relation.
	Columns []string
	// Rows are the projected input rows backing Params.
	Rows []rows.Row
	// Graph holds the base relation and every table, with an edge from each
	// referenced relation to the table reading it.
	Graph *dag.Graph
}

// tableState tracks a table through compilation.
type tableState int

const (
	statePending tableState = iota
	stateResolvingJoins
	stateRendered
)

func (s tableState) String() string {
	switch s {
	case stateResolvingJoins:
		return "resolving_joins"
	case stateRendered:
		return "rendered"
	default:
		return "pending"
	}
}

// target is a table with its classified assignments.
type target struct {
	manifest.Table
	exprs []expr.Expr
}

// plainInsert reports whether the table renders without a conflict clause,
// the only case where a unique constraint is optional.
func (t *target) plainInsert() bool {
	return t.Strategy == manifest.StrategyInsert && t.FailIfExists
}

func (t *target) expr(column string) (expr.Expr, bool) {
	for i, as := range t.Set {
		if as.Column == column {
			return t.exprs[i], true
		}
	}
	return expr.Expr{}, false
}

type compilation struct {
	opts    Options
	logger  *slog.Logger
	targets []*target
	byName  map[string]*target
}

// Compile builds the plan for m over the given input rows. Aliases are
// resolved on a derived copy; m is not modified. Compiling the same manifest,
// rows and options twice yields identical SQL and parameters.
func Compile(m *manifest.Manifest, input []rows.Row, opts Options) (*Plan, error) {
	if opts.CTEPrefix == "" {
		opts.CTEPrefix = DefaultCTEPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &compilation{opts: opts, logger: logger, byName: make(map[string]*target)}
	if err := c.prepare(m.ResolveAliases()); err != nil {
		return nil, err
	}

	graph, order, err := c.order()
	if err != nil {
		return nil, err
	}

	columns := c.baseColumns()
	if len(columns) == 0 {
		return nil, ErrNoBaseColumns
	}

	projected, err := rows.Project(input, columns)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Graph:   graph,
		Columns: columns,
		Rows:    projected,
		Params:  rows.Values(projected, columns),
	}
	plan.CTEs = append(plan.CTEs, sqlgen.CTE{
		Name: c.cte(manifest.BaseRelation),
		SQL:  sqlgen.ValuesSelect(columns, len(projected), c.casts()),
	})

	for _, name := range order {
		if name == manifest.BaseRelation {
			continue
		}
		t := c.byName[name]
		cte, err := c.render(t)
		if err != nil {
			return nil, err
		}
		plan.CTEs = append(plan.CTEs, cte)
		plan.Order = append(plan.Order, name)
	}

	plan.SQL = sqlgen.Chain(plan.CTEs, Terminal)
	return plan, nil
}

// RequiredColumns returns the input columns the manifest reads, in order of
// first appearance over tables and assignments.
func RequiredColumns(m *manifest.Manifest) []string {
	c := &compilation{byName: make(map[string]*target)}
	for _, table := range m.ResolveAliases().Output.TableSet() {
		c.targets = append(c.targets, classify(table))
	}
	return c.baseColumns()
}

func classify(table manifest.Table) *target {
	t := &target{Table: table, exprs: make([]expr.Expr, len(table.Set))}
	for i, as := range table.Set {
		t.exprs[i] = expr.Classify(as.Expr)
	}
	return t
}

// prepare classifies every assignment and validates strategies, unique
// constraints and references.
func (c *compilation) prepare(m *manifest.Manifest) error {
	tables := m.Output.TableSet()
	for _, table := range tables {
		t := classify(table)
		c.targets = append(c.targets, t)
		c.byName[t.Name] = t
	}

	for _, t := range c.targets {
		if !t.Strategy.Valid() {
			return &UnknownStrategyError{Table: t.Name, Strategy: string(t.Strategy)}
		}
		if len(t.UniqueConstraint) == 0 && !t.plainInsert() {
			return &MissingUniqueConstraintError{Table: t.Name}
		}
		for _, key := range t.UniqueConstraint {
			if _, ok := t.Set.Get(key); !ok {
				return &MissingUniqueConstraintError{Table: t.Name, Column: key}
			}
		}
		for i, e := range t.exprs {
			if !e.IsReference() || e.Source == manifest.BaseRelation {
				continue
			}
			dep, ok := c.byName[e.Source]
			if !ok {
				return &UnknownReferenceError{Table: t.Name, Column: t.Set[i].Column, Source: e.Source}
			}
			if len(dep.UniqueConstraint) == 0 {
				return &MissingUniqueConstraintError{Table: dep.Name, JoinedBy: t.Name}
			}
		}
		c.logger.Debug("table state", "table", t.Name, "state", statePending, "strategy", t.Strategy)
	}
	return nil
}

// order sorts the base relation and the tables by their references.
func (c *compilation) order() (*dag.Graph, []string, error) {
	g := dag.NewGraph()
	g.AddNode(manifest.BaseRelation)
	for _, t := range c.targets {
		g.AddNode(t.Name)
	}
	for _, t := range c.targets {
		for _, e := range t.exprs {
			if !e.IsReference() {
				continue
			}
			if err := g.AddEdge(e.Source, t.Name); err != nil {
				return nil, nil, err
			}
		}
	}

	order, err := g.Order()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to order tables: %w", err)
	}
	c.logger.Debug("table order", "order", strings.Join(order, ", "))
	return g, order, nil
}

func (c *compilation) baseColumns() []string {
	var columns []string
	seen := make(map[string]bool)
	for _, t := range c.targets {
		for _, e := range t.exprs {
			if e.References(manifest.BaseRelation) && !seen[e.Path] {
				seen[e.Path] = true
				columns = append(columns, e.Path)
			}
		}
	}
	return columns
}

// casts picks the database type of every input column assigned directly to a
// table column. The first assignment of a column wins.
func (c *compilation) casts() map[string]string {
	if len(c.opts.ColumnTypes) == 0 {
		return nil
	}
	casts := make(map[string]string)
	for _, t := range c.targets {
		types := c.opts.ColumnTypes[t.Name]
		for i, e := range t.exprs {
			if !e.References(manifest.BaseRelation) {
				continue
			}
			if _, done := casts[e.Path]; done {
				continue
			}
			if typ := types[t.Set[i].Column]; castable(typ) {
				casts[e.Path] = typ
			}
		}
	}
	return casts
}

// castable rejects types that cannot be written after :: as reported by
// information_schema.
func castable(typ string) bool {
	switch strings.ToUpper(typ) {
	case "", "USER-DEFINED", "ARRAY":
		return false
	default:
		return true
	}
}

func (c *compilation) cte(relation string) string {
	return c.opts.CTEPrefix + relation
}

// project renders an assignment as a value of the select feeding a table.
func (c *compilation) project(e expr.Expr) sqlgen.Column {
	switch e.Kind {
	case expr.KindReference:
		return sqlgen.Ref(c.cte(e.Source), e.Path)
	case expr.KindEnvRef:
		return sqlgen.Lit(sqlgen.QuoteString(c.opts.Env.Get(e.Path)))
	case expr.KindLiteral:
		return sqlgen.Lit(e.Text)
	default:
		// Only the {{ }} marker passes SQL through; any other text is a value.
		return sqlgen.Lit(sqlgen.QuoteString(e.Text))
	}
}

func (c *compilation) render(t *target) (sqlgen.CTE, error) {
	c.logger.Debug("table state", "table", t.Name, "state", stateResolvingJoins)

	sel := sqlgen.Select{From: c.cte(manifest.BaseRelation)}
	for _, e := range t.exprs {
		sel.Columns = append(sel.Columns, c.project(e))
	}
	// Literal keys are constant across rows and add nothing to distinct on.
	for _, key := range t.UniqueConstraint {
		if e, _ := t.expr(key); e.IsReference() {
			sel.DistinctOn = append(sel.DistinctOn, c.project(e))
		}
	}
	joins := c.joins(t)

	var inner string
	switch t.Strategy {
	case manifest.StrategyInsert, manifest.StrategyUpsert:
		var conflict *sqlgen.OnConflict
		if !t.FailIfExists {
			conflict = &sqlgen.OnConflict{Keys: t.UniqueConstraint, Action: sqlgen.DoNothing}
			if t.Strategy == manifest.StrategyUpsert {
				conflict.Action = sqlgen.DoUpdate
				conflict.Update = t.Set.Columns()
			}
		}
		inner = sqlgen.InsertFromSelect(sqlgen.Insert{Table: t.Name, Columns: t.Set.Columns()}, sel, joins, conflict)
	case manifest.StrategyUpdate:
		set := make([]sqlgen.SetPair, len(t.Set))
		for i, as := range t.Set {
			set[i] = sqlgen.SetPair{Column: as.Column, Value: sel.Columns[i]}
		}
		inner = sqlgen.UpdateFromSelect(sqlgen.Update{Table: t.Name}, set, sel, joins, t.UniqueConstraint)
	default:
		return sqlgen.CTE{}, &UnknownStrategyError{Table: t.Name, Strategy: string(t.Strategy)}
	}

	c.logger.Debug("table state", "table", t.Name, "state", stateRendered, "joins", len(joins))
	return sqlgen.CTE{Name: c.cte(t.Name), SQL: inner, Mutating: true}, nil
}

// joins lists the CTEs a table reads from besides the base relation, in
// order of first reference. A dependency is joined on its unique constraint
// columns against the values they were populated from; when one of those
// values comes from yet another table, that table is joined first.
func (c *compilation) joins(t *target) []sqlgen.Join {
	var joins []sqlgen.Join
	joined := map[string]bool{manifest.BaseRelation: true, t.Name: true}

	var add func(name string)
	add = func(name string) {
		if joined[name] {
			return
		}
		joined[name] = true
		dep := c.byName[name]

		pairs := make([]sqlgen.JoinPair, 0, len(dep.UniqueConstraint))
		for _, key := range dep.UniqueConstraint {
			e, _ := dep.expr(key)
			if e.IsReference() {
				add(e.Source)
			}
			pairs = append(pairs, sqlgen.JoinPair{
				Left:  sqlgen.Ref(c.cte(name), key),
				Right: c.project(e),
			})
		}
		joins = append(joins, sqlgen.Join{Table: c.cte(name), On: pairs})
	}

	for _, e := range t.exprs {
		if e.IsReference() {
			add(e.Source)
		}
	}
	return joins
}
