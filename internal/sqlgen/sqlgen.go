// Package sqlgen renders the PostgreSQL fragments a migration plan is built
// from. Every function is pure: descriptors in, single-line SQL text out.
package sqlgen

import (
	"strings"
)

// Column is one projected value. It is either a column of a relation or a
// raw SQL fragment emitted verbatim.
type Column struct {
	Relation string
	Name     string
	Raw      string
	IsRaw    bool
}

// Ref returns a qualified column reference.
func Ref(relation, name string) Column {
	return Column{Relation: relation, Name: name}
}

// Lit returns a raw SQL fragment.
func Lit(sql string) Column {
	return Column{Raw: sql, IsRaw: true}
}

// SQL renders the column.
func (c Column) SQL() string {
	if c.IsRaw {
		return c.Raw
	}
	return QuoteIdent(c.Relation) + "." + QuoteIdent(c.Name)
}

// Select describes the source side of an insert or update.
type Select struct {
	From       string
	Columns    []Column
	DistinctOn []Column
}

// Join is an inner join against an earlier CTE.
type Join struct {
	Table string
	On    []JoinPair
}

// JoinPair is one equality of a join condition.
type JoinPair struct {
	Left  Column
	Right Column
}

// Insert names the target table and columns of an insert.
type Insert struct {
	Table   string
	Columns []string
}

// ConflictAction is what an insert does on a unique violation.
type ConflictAction int

// ConflictAction constants.
const (
	DoNothing ConflictAction = iota
	DoUpdate
)

// OnConflict describes an on conflict clause.
type OnConflict struct {
	Keys   []string
	Action ConflictAction
	Update []string
}

// Update names the target table of an update.
type Update struct {
	Table string
}

// SetPair assigns a projected value to a target column.
type SetPair struct {
	Column string
	Value  Column
}

// CTE is one named entry of a with clause.
type CTE struct {
	Name     string
	SQL      string
	Mutating bool
}

// ValuesSelect renders the base relation over positional parameters:
//
//	select a, b from (values ($1, $2), ($3, $4)) as s(a, b)
//
// casts maps a column to a type appended to each of its placeholders.
func ValuesSelect(columns []string, rowCount int, casts map[string]string) string {
	quoted := quoteAll(columns)
	list := strings.Join(quoted, ", ")

	var b strings.Builder
	b.WriteString("select ")
	b.WriteString(list)
	b.WriteString(" from (values ")
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c, col := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Placeholder(r*len(columns) + c + 1))
			if t := casts[col]; t != "" {
				b.WriteString("::")
				b.WriteString(t)
			}
		}
		b.WriteByte(')')
	}
	b.WriteString(") as s(")
	b.WriteString(list)
	b.WriteByte(')')
	return b.String()
}

// InsertFromSelect renders
//
//	insert into T (c, ...) select [distinct on (...)] ... from S [join ...] [on conflict ...]
//
// A nil conflict omits the on conflict clause.
func InsertFromSelect(ins Insert, sel Select, joins []Join, conflict *OnConflict) string {
	var b strings.Builder
	b.WriteString("insert into ")
	b.WriteString(QuoteTable(ins.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoteAll(ins.Columns), ", "))
	b.WriteString(") ")
	writeSelect(&b, sel.From, sel.DistinctOn, columnSQL(sel.Columns))
	writeJoins(&b, joins)
	if conflict != nil && len(conflict.Keys) > 0 {
		b.WriteString(" on conflict (")
		b.WriteString(strings.Join(quoteAll(conflict.Keys), ", "))
		b.WriteString(")")
		switch conflict.Action {
		case DoUpdate:
			b.WriteString(" do update set ")
			for i, col := range conflict.Update {
				if i > 0 {
					b.WriteString(", ")
				}
				q := QuoteIdent(col)
				b.WriteString(q + " = excluded." + q)
			}
		default:
			b.WriteString(" do nothing")
		}
	}
	return b.String()
}

// UpdateAlias names the inlined select of an update.
const UpdateAlias = "s"

// UpdateFromSelect renders
//
//	update T set c = s.c, ... from (select ... from S [join ...]) as s where T.k = s.k and ...
//
// The inlined select projects each set pair's value under its column name;
// sel supplies the relation and the distinct on list. Rows are matched on
// matchKeys, which must be assigned by set.
func UpdateFromSelect(upd Update, set []SetPair, sel Select, joins []Join, matchKeys []string) string {
	target := QuoteTable(upd.Table)

	projection := make([]string, len(set))
	for i, p := range set {
		projection[i] = p.Value.SQL() + " as " + QuoteIdent(p.Column)
	}

	var b strings.Builder
	b.WriteString("update ")
	b.WriteString(target)
	b.WriteString(" set ")
	for i, p := range set {
		if i > 0 {
			b.WriteString(", ")
		}
		q := QuoteIdent(p.Column)
		b.WriteString(q + " = " + UpdateAlias + "." + q)
	}
	b.WriteString(" from (")
	writeSelect(&b, sel.From, sel.DistinctOn, projection)
	writeJoins(&b, joins)
	b.WriteString(") as " + UpdateAlias)
	for i, k := range matchKeys {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		q := QuoteIdent(k)
		b.WriteString(target + "." + q + " = " + UpdateAlias + "." + q)
	}
	return b.String()
}

// WrapCTE renders name as (inner), adding returning * for mutations so later
// entries can join on the affected rows.
func WrapCTE(name, inner string, mutating bool) string {
	if mutating {
		inner += " returning *"
	}
	return QuoteIdent(name) + " as (" + inner + ")"
}

// Chain joins CTEs into one statement ending in terminal.
func Chain(ctes []CTE, terminal string) string {
	if len(ctes) == 0 {
		return terminal
	}
	parts := make([]string, len(ctes))
	for i, c := range ctes {
		parts[i] = WrapCTE(c.Name, c.SQL, c.Mutating)
	}
	return "with " + strings.Join(parts, ", ") + " " + terminal
}

func writeSelect(b *strings.Builder, from string, distinctOn []Column, columns []string) {
	b.WriteString("select ")
	if len(distinctOn) > 0 {
		b.WriteString("distinct on (")
		b.WriteString(strings.Join(columnSQL(distinctOn), ", "))
		b.WriteString(") ")
	}
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" from ")
	b.WriteString(QuoteIdent(from))
}

func writeJoins(b *strings.Builder, joins []Join) {
	for _, j := range joins {
		b.WriteString(" join ")
		b.WriteString(QuoteIdent(j.Table))
		for i, p := range j.On {
			if i == 0 {
				b.WriteString(" on ")
			} else {
				b.WriteString(" and ")
			}
			b.WriteString(p.Left.SQL() + " = " + p.Right.SQL())
		}
	}
}

func columnSQL(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.SQL()
	}
	return out
}
