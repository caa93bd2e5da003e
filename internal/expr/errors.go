package expr

import (
	"errors"
	"fmt"
)

// ErrDivisionByZero is returned when a template divides by zero.
var ErrDivisionByZero = errors.New("division by zero")

// MultiValueConflictError is returned when both sides of an operation are
// multi-valued, so the result cardinality is ambiguous.
type MultiValueConflictError struct {
	Expr string
}

func (e *MultiValueConflictError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: both operands hold multiple values", e.Expr)
}

// OperandError is returned when - * or / is applied to a non-numeric operand.
type OperandError struct {
	Op    string
	Left  string
	Right string
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("operator %q needs numeric operands, got %q and %q", e.Op, e.Left, e.Right)
}
