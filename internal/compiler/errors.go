package compiler

import (
	"errors"
	"fmt"
)

// ErrNoBaseColumns is returned when no assignment reads from the input rows.
var ErrNoBaseColumns = errors.New("no table assignment reads from the input rows (expected at least one _.<column> reference)")

// UnknownStrategyError is returned for a missing or unsupported strategy.
type UnknownStrategyError struct {
	Table    string
	Strategy string
}

func (e *UnknownStrategyError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("table %q: property \"strategy\" is required (insert, update or upsert)", e.Table)
	}
	return fmt.Sprintf("table %q: invalid strategy %q (expected insert, update or upsert)", e.Table, e.Strategy)
}

// MissingUniqueConstraintError is returned when a table needs a unique
// constraint and declares none, or when a constraint column is not assigned
// in set. JoinedBy names the table that joins on the unconstrained one.
type MissingUniqueConstraintError struct {
	Table    string
	Column   string
	JoinedBy string
}

func (e *MissingUniqueConstraintError) Error() string {
	if e.JoinedBy != "" {
		return fmt.Sprintf("table %q: property \"uniqueConstraint\" is required because table %q references it", e.Table, e.JoinedBy)
	}
	if e.Column == "" {
		return fmt.Sprintf("table %q: property \"uniqueConstraint\" is required", e.Table)
	}
	return fmt.Sprintf("table %q: unique constraint column %q is not assigned in \"set\"", e.Table, e.Column)
}

// UnknownReferenceError is returned when an assignment references a relation
// that is neither the input rows nor a declared table.
type UnknownReferenceError struct {
	Table  string
	Column string
	Source string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("table %q: column %q references unknown table %q", e.Table, e.Column, e.Source)
}
