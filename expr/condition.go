package expr

import (
	"fmt"
	"strings"
)

// Event is a hardware or user event an engine can wait on.
type Event struct {
	Engine string
	Name   string

	// HwName is the vendor name of the event, e.g. "fpga_user_0".
	HwName string
}

func (e *Event) String() string {
	return e.Name
}

// CondKind tells how a Condition is built.
type CondKind uint8

// Condition kinds.
const (
	CondCompare CondKind = iota
	CondAnd
	CondOr
	CondNot
	CondEvent
)

// Relational operators of compare conditions.
const (
	OpEqual          = "=="
	OpNotEqual       = "!="
	OpGreater        = ">"
	OpGreaterOrEqual = ">="
	OpLess           = "<"
	OpLessOrEqual    = "<="
)

// Condition is an immutable boolean expression on registers and events.
type Condition struct {
	Kind CondKind

	// Op, LHS and RHS are set for CondCompare.
	Op  string
	LHS Operand
	RHS Operand

	// Terms holds the operands of CondAnd and CondOr, and the single
	// negated condition of CondNot.
	Terms []Condition

	// Event is set for CondEvent.
	Event *Event
}

func compare(op string, lhs, rhs Operand) Condition {
	return Condition{Kind: CondCompare, Op: op, LHS: lhs, RHS: rhs}
}

// Equal returns lhs == rhs.
func Equal(lhs, rhs Operand) Condition { return compare(OpEqual, lhs, rhs) }

// NotEqual returns lhs != rhs.
func NotEqual(lhs, rhs Operand) Condition { return compare(OpNotEqual, lhs, rhs) }

// Greater returns lhs > rhs.
func Greater(lhs, rhs Operand) Condition { return compare(OpGreater, lhs, rhs) }

// GreaterOrEqual returns lhs >= rhs.
func GreaterOrEqual(lhs, rhs Operand) Condition { return compare(OpGreaterOrEqual, lhs, rhs) }

// Less returns lhs < rhs.
func Less(lhs, rhs Operand) Condition { return compare(OpLess, lhs, rhs) }

// LessOrEqual returns lhs <= rhs.
func LessOrEqual(lhs, rhs Operand) Condition { return compare(OpLessOrEqual, lhs, rhs) }

// LogicalAnd returns the conjunction of the conditions.
func LogicalAnd(terms ...Condition) Condition {
	return Condition{Kind: CondAnd, Terms: append([]Condition{}, terms...)}
}

// LogicalOr returns the disjunction of the conditions.
func LogicalOr(terms ...Condition) Condition {
	return Condition{Kind: CondOr, Terms: append([]Condition{}, terms...)}
}

// Negate returns the negation of a condition.
func Negate(c Condition) Condition {
	return Condition{Kind: CondNot, Terms: []Condition{c}}
}

// OnEvent returns a condition that is true when the event is active.
func OnEvent(e *Event) Condition {
	return Condition{Kind: CondEvent, Event: e}
}

// NumConditions returns the number of evaluations the engine executes for
// the condition. It drives the timing of loops.
func (c Condition) NumConditions() int {
	switch c.Kind {
	case CondAnd, CondOr:
		n := 0
		for _, t := range c.Terms {
			n += t.NumConditions()
		}
		return n
	case CondNot:
		return c.Terms[0].NumConditions() + 1
	default:
		return 1
	}
}

func (c Condition) String() string {
	switch c.Kind {
	case CondCompare:
		return fmt.Sprintf("%s %s %s", c.LHS, c.Op, c.RHS)
	case CondAnd, CondOr:
		sep := " AND "
		if c.Kind == CondOr {
			sep = " OR "
		}
		parts := make([]string, len(c.Terms))
		for i, t := range c.Terms {
			parts[i] = t.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	case CondNot:
		return "NOT(" + c.Terms[0].String() + ")"
	case CondEvent:
		return c.Event.String()
	}
	return "?"
}

// Registers returns all registers read by the condition.
func (c Condition) Registers() []*Register {
	var registers []*Register
	switch c.Kind {
	case CondCompare:
		registers = append(registers, c.LHS.Registers()...)
		registers = append(registers, c.RHS.Registers()...)
	case CondAnd, CondOr, CondNot:
		for _, t := range c.Terms {
			registers = append(registers, t.Registers()...)
		}
	}
	return registers
}

// Events returns all events the condition depends on.
func (c Condition) Events() []*Event {
	var events []*Event
	switch c.Kind {
	case CondEvent:
		events = append(events, c.Event)
	case CondAnd, CondOr, CondNot:
		for _, t := range c.Terms {
			events = append(events, t.Events()...)
		}
	}
	return events
}
