// Package expr provides registers and the conditions and expressions built
// from them.
//
// Conditions and expressions are immutable values. They are built with
// explicit constructors and consumed by a builder operation:
//
//	cond := expr.LogicalAnd(
//		expr.Equal(start, expr.Const(1)),
//		expr.Negate(expr.Equal(stop, expr.Const(1))),
//	)
package expr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sarchlab/hviseq/seqerr"
)

// Operand is a value usable in conditions, expressions and waits: a
// Register or a Constant.
type Operand interface {
	fmt.Stringer

	// Registers returns the registers the operand reads.
	Registers() []*Register

	isOperand()
}

// Constant is an integer literal operand.
type Constant int

// Const returns a constant operand.
func Const(v int) Constant {
	return Constant(v)
}

func (c Constant) String() string {
	return fmt.Sprint(int(c))
}

// Registers returns nil; constants read no registers.
func (c Constant) Registers() []*Register {
	return nil
}

func (Constant) isOperand() {}

// Register is named integer storage on one engine.
type Register struct {
	Engine       string
	Name         string
	InitialValue int
}

// String returns the short form used in statement texts, e.g. "[n_loops]".
func (r *Register) String() string {
	return "[" + r.Name + "]"
}

// FullName returns the engine qualified name, e.g. "[AWG1|n_loops]".
func (r *Register) FullName() string {
	return "[" + r.Engine + "|" + r.Name + "]"
}

// Registers returns the register itself.
func (r *Register) Registers() []*Register {
	return []*Register{r}
}

func (*Register) isOperand() {}

// RegisterSet is a register or a set of registers mirrored on several
// engines.
type RegisterSet interface {
	Members() []*Register
}

// Members returns the register itself.
func (r *Register) Members() []*Register {
	return []*Register{r}
}

// ModuleRegister is a register with the same name on several engines.
type ModuleRegister struct {
	engines   []string
	registers map[string]*Register
}

// NewModuleRegister creates a module register from per-engine registers,
// kept in the given order.
func NewModuleRegister(registers []*Register) *ModuleRegister {
	m := &ModuleRegister{
		engines:   make([]string, 0, len(registers)),
		registers: make(map[string]*Register, len(registers)),
	}
	for _, r := range registers {
		m.engines = append(m.engines, r.Engine)
		m.registers[r.Engine] = r
	}
	return m
}

// Engines returns the engine aliases in order.
func (m *ModuleRegister) Engines() []string {
	return slices.Clone(m.engines)
}

// Get returns the register of an engine.
func (m *ModuleRegister) Get(engine string) (*Register, bool) {
	r, ok := m.registers[engine]
	return r, ok
}

// Members returns the registers in engine order.
func (m *ModuleRegister) Members() []*Register {
	members := make([]*Register, 0, len(m.engines))
	for _, e := range m.engines {
		members = append(members, m.registers[e])
	}
	return members
}

// autoNumberSuffix requests a numbered register name.
const autoNumberSuffix = " #n"

// Namespace holds the registers of one engine. Names are unique.
type Namespace struct {
	engine    string
	names     []string
	registers map[string]*Register
}

// NewNamespace creates an empty namespace for an engine.
func NewNamespace(engine string) *Namespace {
	return &Namespace{
		engine:    engine,
		names:     []string{},
		registers: map[string]*Register{},
	}
}

// Engine returns the engine alias of the namespace.
func (n *Namespace) Engine() string {
	return n.engine
}

// Add adds a register. A name ending with " #n" is numbered: "x #n"
// becomes "x #1", "x #2", ...
func (n *Namespace) Add(name string, initialValue int) (*Register, error) {
	if base, ok := strings.CutSuffix(name, autoNumberSuffix); ok {
		prefix := base + " #"
		count := 0
		for _, existing := range n.names {
			if strings.HasPrefix(existing, prefix) {
				count++
			}
		}
		name = fmt.Sprintf("%s%d", prefix, count+1)
	}

	if name == "" {
		return nil, fmt.Errorf("register name may not be empty")
	}
	if _, exists := n.registers[name]; exists {
		return nil, fmt.Errorf("register '%s' already exists on %s", name, n.engine)
	}

	r := &Register{Engine: n.engine, Name: name, InitialValue: initialValue}
	n.names = append(n.names, name)
	n.registers[name] = r
	return r, nil
}

// Get returns the register with the given name.
func (n *Namespace) Get(name string) (*Register, error) {
	r, ok := n.registers[name]
	if !ok {
		return nil, &seqerr.LookupError{Kind: "register", Name: name, Scope: n.engine}
	}
	return r, nil
}

// Owns returns true if the register was added to this namespace.
func (n *Namespace) Owns(r *Register) bool {
	return r != nil && n.registers[r.Name] == r
}

// Check returns a LookupError for the first operand register that does not
// belong to this namespace.
func (n *Namespace) Check(operands ...Operand) error {
	for _, op := range operands {
		if op == nil {
			continue
		}
		if err := n.CheckRegisters(op.Registers()...); err != nil {
			return err
		}
	}
	return nil
}

// CheckRegisters returns a LookupError for the first register that does
// not belong to this namespace.
func (n *Namespace) CheckRegisters(registers ...*Register) error {
	for _, r := range registers {
		if r == nil {
			return &seqerr.LookupError{
				Kind:  "register",
				Name:  "<nil>",
				Scope: n.engine,
				Msg:   "missing register",
			}
		}
		if !n.Owns(r) {
			return &seqerr.LookupError{
				Kind:  "register",
				Name:  r.FullName(),
				Scope: n.engine,
				Msg:   "operands must be registers of the same engine",
			}
		}
	}
	return nil
}

// Remove removes a register added to this namespace.
func (n *Namespace) Remove(r *Register) {
	if !n.Owns(r) {
		return
	}
	delete(n.registers, r.Name)
	n.names = slices.DeleteFunc(n.names, func(name string) bool { return name == r.Name })
}

// Registers returns all registers in order of creation.
func (n *Namespace) Registers() []*Register {
	registers := make([]*Register, 0, len(n.names))
	for _, name := range n.names {
		registers = append(registers, n.registers[name])
	}
	return registers
}
