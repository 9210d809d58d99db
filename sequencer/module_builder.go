package sequencer

import (
	"fmt"

	"github.com/sarchlab/hviseq/builder"
	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/timing/latency"
)

// StatementOption changes how a statement is added.
type StatementOption func(*statementOptions)

type statementOptions struct {
	startDelay *uint64
	text       string
}

// WithStartDelay sets the start delay of the statement in ns. It must not
// be shorter than the minimum start delay.
func WithStartDelay(ns uint64) StatementOption {
	return func(o *statementOptions) {
		o.startDelay = &ns
	}
}

// WithText replaces the text of the statement in listings.
func WithText(text string) StatementOption {
	return func(o *statementOptions) {
		o.text = text
	}
}

// ModuleBuilder adds statements to the sequences of one engine. It is only
// active inside a synced block of the sync builder.
type ModuleBuilder struct {
	seq      *Sequencer
	b        *builder.Builder
	engine   *engine.Engine
	moduleID string
	ns       *expr.Namespace
}

func newModuleBuilder(s *Sequencer, e *engine.Engine, moduleID string) *ModuleBuilder {
	return &ModuleBuilder{
		seq:      s,
		b:        builder.New(s.tree, e.Alias, s.backend.NewHandle),
		engine:   e,
		moduleID: moduleID,
		ns:       s.namespaces[e.Alias],
	}
}

// Engine returns the engine of the builder.
func (m *ModuleBuilder) Engine() *engine.Engine {
	return m.engine
}

// ModuleID returns the letter that identifies the engine in line ids.
func (m *ModuleBuilder) ModuleID() string {
	return m.moduleID
}

// Line returns the line id of the next statement.
func (m *ModuleBuilder) Line() string {
	return m.b.Line()
}

// State returns the state of the builder.
func (m *ModuleBuilder) State() builder.State {
	return m.b.State()
}

// Current returns the last statement of the active sequence, or nil.
func (m *ModuleBuilder) Current() *flow.Statement {
	if seq := m.b.Sequence(); seq != nil {
		return seq.Last()
	}
	return nil
}

func (m *ModuleBuilder) add(
	text string,
	timing latency.TimingSpec,
	inst *insts.Instruction,
	opts []StatementOption,
) (*flow.Statement, error) {
	o := statementOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.text != "" {
		text = o.text
	}
	return m.b.AddStatement(text, timing, inst, o.startDelay)
}

// addInstruction adds an instruction with the timing from the table.
func (m *ModuleBuilder) addInstruction(
	text string,
	inst *insts.Instruction,
	opts []StatementOption,
) (*flow.Statement, error) {
	return m.add(text, m.seq.table.GetTiming(inst), inst, opts)
}

// Register returns a register of the engine.
func (m *ModuleBuilder) Register(name string) (*expr.Register, error) {
	return m.ns.Get(name)
}

func (m *ModuleBuilder) checkCondition(c expr.Condition) error {
	if err := m.ns.CheckRegisters(c.Registers()...); err != nil {
		return err
	}
	for _, ev := range c.Events() {
		if !m.engine.OwnsEvent(ev) {
			return &seqerr.LookupError{Kind: "event", Name: ev.Name, Scope: m.engine.Alias}
		}
	}
	return nil
}

// Wait adds a delay of ns nanoseconds. The delay is the start delay of the
// statement after it.
func (m *ModuleBuilder) Wait(ns uint64) (*flow.Statement, error) {
	inst := insts.New(insts.OpDelay).With("delay", ns)
	return m.add(fmt.Sprintf("wait %d ns", ns), m.seq.table.WaitConstant(), inst,
		[]StatementOption{WithStartDelay(ns)})
}

// WaitRegister adds a wait of the number of ns in a register. The time is
// only known at runtime.
func (m *ModuleBuilder) WaitRegister(r *expr.Register) (*flow.Statement, error) {
	if err := m.ns.Check(r); err != nil {
		return nil, err
	}

	timing := m.seq.table.WaitRegister().WithResources(nil, []string{r.FullName()})
	timing.NonDeterministic = r.String()
	inst := insts.New(insts.OpWaitTime).With("time", r)

	return m.add("wait "+r.String(), timing, inst, nil)
}

// WaitFor adds a wait until the condition is true.
func (m *ModuleBuilder) WaitFor(c expr.Condition) (*flow.Statement, error) {
	if err := m.checkCondition(c); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpWait).With("condition", c)
	return m.add("wait for "+c.String(), m.seq.table.WaitFor(c.String()), inst, nil)
}

// While opens a loop that runs while the condition is true. The returned
// block must be entered before the next call.
func (m *ModuleBuilder) While(c expr.Condition) (*builder.Block, error) {
	if err := m.checkCondition(c); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpWhile).With("condition", c)
	return m.b.OpenLoop(builder.HandleWhile, "while "+c.String()+":",
		m.seq.table.While(c.NumConditions()), inst)
}

// Repeat opens a loop that runs n times. n is a positive constant or a
// register of the engine. A counter register is added, reset before the
// loop and incremented as the last statement of the loop body.
func (m *ModuleBuilder) Repeat(n expr.Operand) (block *builder.Block, err error) {
	if err := checkCount(m.ns, n); err != nil {
		return nil, err
	}
	if err := m.b.Check(); err != nil {
		return nil, err
	}

	counter, err := m.seq.addRegister(m.engine.Alias, "counter_"+m.Line(), 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			m.ns.Remove(counter)
		}
	}()

	if _, err := m.SetRegister(counter, expr.Const(0)); err != nil {
		return nil, err
	}

	cond := expr.Less(counter, n)
	inst := insts.New(insts.OpWhile).With("condition", cond)
	block, err = m.b.OpenLoop(builder.HandleWhile, "while "+cond.String()+":",
		m.seq.table.While(cond.NumConditions()), inst)
	if err != nil {
		return nil, err
	}

	block.OnExit(func() error {
		_, err := m.IncrementRegister(counter, 1)
		return err
	})

	return block, nil
}

func checkCount(ns *expr.Namespace, n expr.Operand) error {
	switch v := n.(type) {
	case expr.Constant:
		if v < 1 {
			return fmt.Errorf("repeat count must be positive, got %d", int(v))
		}
		return nil
	case *expr.Register:
		return ns.Check(v)
	}
	return fmt.Errorf("repeat count must be a constant or a register, got %T", n)
}

func registerNames(operands ...expr.Operand) []string {
	var names []string
	for _, op := range operands {
		for _, r := range op.Registers() {
			names = append(names, r.FullName())
		}
	}
	return names
}

// SetRegister adds the assignment r = value.
func (m *ModuleBuilder) SetRegister(
	r *expr.Register,
	value expr.Operand,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if err := m.ns.Check(r, value); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpAssign).
		With("destination", r).
		With("source", value)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{r.FullName()}, registerNames(value))

	return m.add(fmt.Sprintf("%s = %s", r, value), timing, inst, opts)
}

// IncrementRegister adds r += value.
func (m *ModuleBuilder) IncrementRegister(
	r *expr.Register,
	value int,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if err := m.ns.Check(r); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpAdd).
		With("destination", r).
		With("left_operand", r).
		With("right_operand", value)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{r.FullName()}, []string{r.FullName()})

	return m.add(fmt.Sprintf("%s += %d", r, value), timing, inst, opts)
}

// AssignExpression adds the assignment of an add or subtract expression.
// All registers must belong to the engine.
func (m *ModuleBuilder) AssignExpression(
	e expr.Expression,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if e.Destination == nil {
		return nil, fmt.Errorf("expression %s has no destination", e)
	}
	if err := m.ns.Check(e.Operands()...); err != nil {
		return nil, err
	}

	op := insts.OpAdd
	if e.Kind == expr.ExprSubtract {
		op = insts.OpSubtract
	}
	inst := insts.New(op).
		With("destination", e.Destination).
		With("left_operand", e.LHS).
		With("right_operand", e.RHS)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{e.Destination.FullName()}, registerNames(e.LHS, e.RHS))

	return m.add(e.String(), timing, inst, opts)
}

// checkValue checks a value accepted by Assign without adding anything.
func (m *ModuleBuilder) checkValue(value any) error {
	switch v := value.(type) {
	case int:
		return nil
	case expr.Operand:
		return m.ns.Check(v)
	case expr.Expression:
		return m.ns.Check(v.LHS, v.RHS)
	case *engine.FpgaSymbol:
		_, err := m.engine.FpgaRegister(v.Name)
		return err
	}
	return fmt.Errorf("cannot assign %T", value)
}

// Assign assigns a value to the register with the given name. The value
// is an int, an operand, an expression on the engine registers, or an
// FPGA register to read.
func (m *ModuleBuilder) Assign(name string, value any) (*flow.Statement, error) {
	r, err := m.ns.Get(name)
	if err != nil {
		return nil, err
	}
	if err := m.checkValue(value); err != nil {
		return nil, fmt.Errorf("%s: %w", r, err)
	}

	switch v := value.(type) {
	case int:
		return m.SetRegister(r, expr.Const(v))
	case expr.Operand:
		return m.SetRegister(r, v)
	case expr.Expression:
		v.Destination = r
		return m.AssignExpression(v)
	case *engine.FpgaSymbol:
		return m.ReadFpga(r, v.Name)
	}

	return nil, fmt.Errorf("cannot assign %T to %s", value, r)
}
