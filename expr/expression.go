package expr

import "fmt"

// ExprKind is the arithmetic operation of an Expression.
type ExprKind uint8

// Expression kinds.
const (
	ExprAdd ExprKind = iota
	ExprSubtract
)

// Expression assigns the result of an arithmetic operation to a
// destination register.
type Expression struct {
	Kind        ExprKind
	Destination *Register
	LHS         Operand
	RHS         Operand
}

// Add returns dest = lhs + rhs.
func Add(dest *Register, lhs, rhs Operand) Expression {
	return Expression{Kind: ExprAdd, Destination: dest, LHS: lhs, RHS: rhs}
}

// Subtract returns dest = lhs - rhs.
func Subtract(dest *Register, lhs, rhs Operand) Expression {
	return Expression{Kind: ExprSubtract, Destination: dest, LHS: lhs, RHS: rhs}
}

// Operator returns "+" or "-".
func (e Expression) Operator() string {
	if e.Kind == ExprSubtract {
		return "-"
	}
	return "+"
}

func (e Expression) String() string {
	return fmt.Sprintf("%s = %s %s %s", e.Destination, e.LHS, e.Operator(), e.RHS)
}

// Operands returns the destination followed by the operands. Used to
// check that all registers belong to one engine.
func (e Expression) Operands() []Operand {
	return []Operand{e.Destination, e.LHS, e.RHS}
}
