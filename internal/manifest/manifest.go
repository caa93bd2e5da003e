// Package manifest defines the rdm.json document: where input rows come from
// and how each target table is populated from them.
//
// A Manifest is treated as immutable once loaded. Operations that rewrite it,
// such as alias resolution, return a new value and leave the receiver intact.
package manifest

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// BaseRelation is the reserved name of the relation holding the raw input rows.
const BaseRelation = "_"

// Strategy is the merge policy of a target table.
type Strategy string

// Strategy constants.
const (
	StrategyInsert Strategy = "insert"
	StrategyUpdate Strategy = "update"
	StrategyUpsert Strategy = "upsert"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyInsert, StrategyUpdate, StrategyUpsert:
		return true
	default:
		return false
	}
}

// Manifest is the top-level migration document.
type Manifest struct {
	Input   Source        `yaml:"input"`
	Sources []NamedSource `yaml:"sources,omitempty"`
	Output  Output        `yaml:"output"`
	Cron    string        `yaml:"cron,omitempty"`

	// Dir is the directory the manifest was loaded from. Relative file
	// sources are resolved against it.
	Dir string `yaml:"-"`
}

// Output describes the target database and tables.
type Output struct {
	Alias    map[string]string `yaml:"alias,omitempty"`
	Database *Database         `yaml:"database,omitempty"`
	Tables   Tables            `yaml:"tables,omitempty"`
}

// Database holds the connection URL and, in the nested form, the tables.
type Database struct {
	URL    string `yaml:"url,omitempty"`
	Tables Tables `yaml:"tables,omitempty"`
}

// TableSet returns the target tables, preferring output.database.tables.
func (o Output) TableSet() Tables {
	if o.Database != nil && len(o.Database.Tables) > 0 {
		return o.Database.Tables
	}
	return o.Tables
}

// DatabaseURL returns output.database.url, or "" when absent.
func (o Output) DatabaseURL() string {
	if o.Database == nil {
		return ""
	}
	return o.Database.URL
}

// TableSpec is the population rule of one target table.
type TableSpec struct {
	Set              Assignments `yaml:"set"`
	Strategy         Strategy    `yaml:"strategy,omitempty"`
	FailIfExists     bool        `yaml:"failIfExists,omitempty"`
	UniqueConstraint []string    `yaml:"uniqueConstraint,omitempty"`
}

// Table is a named TableSpec.
type Table struct {
	Name string
	TableSpec
}

// Tables keeps target tables in the order they appear in the manifest.
type Tables []Table

// Get returns the table with the given name.
func (t Tables) Get(name string) (Table, bool) {
	for _, table := range t {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

// Names returns the table names in manifest order.
func (t Tables) Names() []string {
	names := make([]string, len(t))
	for i, table := range t {
		names[i] = table.Name
	}
	return names
}

// UnmarshalYAML decodes a mapping of table name to spec, keeping key order.
func (t *Tables) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tables must be a mapping of table name to table spec", node.Line)
	}
	tables := make(Tables, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if _, dup := tables.Get(name); dup {
			return fmt.Errorf("line %d: table %q declared twice", node.Content[i].Line, name)
		}
		var spec TableSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
		tables = append(tables, Table{Name: name, TableSpec: spec})
	}
	*t = tables
	return nil
}

// Assignment binds a target column to an expression.
type Assignment struct {
	Column string
	Expr   string
}

// Assignments keeps the set clause of a table in manifest order.
type Assignments []Assignment

// Get returns the expression assigned to column.
func (a Assignments) Get(column string) (string, bool) {
	for _, as := range a {
		if as.Column == column {
			return as.Expr, true
		}
	}
	return "", false
}

// Columns returns the assigned column names in order.
func (a Assignments) Columns() []string {
	cols := make([]string, len(a))
	for i, as := range a {
		cols[i] = as.Column
	}
	return cols
}

// UnmarshalYAML decodes a mapping of column to expression, keeping key order.
func (a *Assignments) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: set must be a mapping of column to expression", node.Line)
	}
	out := make(Assignments, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: column %q must be assigned a string expression", value.Line, key.Value)
		}
		out = append(out, Assignment{Column: key.Value, Expr: value.Value})
	}
	*a = out
	return nil
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Input = m.Input.clone()
	c.Sources = make([]NamedSource, len(m.Sources))
	for i, s := range m.Sources {
		c.Sources[i] = NamedSource{Name: s.Name, Source: s.Source.clone()}
	}
	if m.Sources == nil {
		c.Sources = nil
	}
	c.Output.Alias = cloneMap(m.Output.Alias)
	c.Output.Tables = m.Output.Tables.clone()
	if m.Output.Database != nil {
		db := *m.Output.Database
		db.Tables = m.Output.Database.Tables.clone()
		c.Output.Database = &db
	}
	return &c
}

func (t Tables) clone() Tables {
	if t == nil {
		return nil
	}
	out := make(Tables, len(t))
	for i, table := range t {
		out[i] = Table{
			Name: table.Name,
			TableSpec: TableSpec{
				Set:              slices.Clone(table.Set),
				Strategy:         table.Strategy,
				FailIfExists:     table.FailIfExists,
				UniqueConstraint: slices.Clone(table.UniqueConstraint),
			},
		}
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
