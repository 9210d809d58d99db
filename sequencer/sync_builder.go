package sequencer

import (
	"fmt"
	"strings"

	"github.com/sarchlab/hviseq/builder"
	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/seqerr"
)

// syncBlockText is the listing text of a synced block.
var syncBlockText = strings.Repeat("=", 30)

// SyncBuilder adds statements to the main sequence, which all engines
// execute together.
type SyncBuilder struct {
	seq *Sequencer
	b   *builder.Builder
}

func newSyncBuilder(s *Sequencer) *SyncBuilder {
	return &SyncBuilder{
		seq: s,
		b:   builder.New(s.tree, "sync", s.backend.NewHandle),
	}
}

// Line returns the line id of the next statement.
func (y *SyncBuilder) Line() string {
	return y.b.Line()
}

// State returns the state of the builder.
func (y *SyncBuilder) State() builder.State {
	return y.b.State()
}

// Main returns the block of the main sequence. Entering it again appends
// to the statements added before.
func (y *SyncBuilder) Main() (*builder.Block, error) {
	return y.b.OpenRoot(y.seq.root)
}

// Register returns a sync register.
func (y *SyncBuilder) Register(name string) (*expr.Register, error) {
	return y.seq.master().Register(name)
}

// checkCondition checks that the registers of the condition are sync
// registers. Events may come from any engine.
func (y *SyncBuilder) checkCondition(c expr.Condition) error {
	if err := y.seq.master().ns.CheckRegisters(c.Registers()...); err != nil {
		return err
	}
	for _, ev := range c.Events() {
		e, err := y.seq.system.Engine(ev.Engine)
		if err != nil {
			return err
		}
		if !e.OwnsEvent(ev) {
			return &seqerr.LookupError{Kind: "event", Name: ev.Name, Scope: e.Alias}
		}
	}
	return nil
}

func (y *SyncBuilder) openWhile(c expr.Condition, text string) (*builder.Block, error) {
	inst := insts.New(insts.OpSyncWhile).With("condition", c)
	return y.b.OpenLoop(builder.HandleSyncWhile, text,
		y.seq.table.SyncWhile(c.NumConditions()), inst)
}

// While opens a synchronized loop that all engines run while the
// condition is true.
func (y *SyncBuilder) While(c expr.Condition) (*builder.Block, error) {
	if err := y.checkCondition(c); err != nil {
		return nil, err
	}
	return y.openWhile(c, "while "+c.String()+":")
}

// Repeat opens a synchronized loop that runs n times. The counter is a
// sync register that is reset and incremented in synced blocks on the
// master engine.
func (y *SyncBuilder) Repeat(n expr.Operand) (block *builder.Block, err error) {
	master := y.seq.master()
	if err := checkCount(master.ns, n); err != nil {
		return nil, err
	}
	if err := y.b.Check(); err != nil {
		return nil, err
	}

	counter, err := y.seq.AddSyncRegister("counter_"+y.Line(), 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			master.ns.Remove(counter)
		}
	}()

	if err := y.onMaster(func(m *ModuleBuilder) error {
		_, err := m.SetRegister(counter, expr.Const(0))
		return err
	}); err != nil {
		return nil, err
	}

	cond := expr.Less(counter, n)
	block, err = y.openWhile(cond, fmt.Sprintf("while %s < %s:", counter.FullName(), n))
	if err != nil {
		return nil, err
	}

	block.OnExit(func() error {
		return y.onMaster(func(m *ModuleBuilder) error {
			_, err := m.IncrementRegister(counter, 1)
			return err
		})
	})

	return block, nil
}

// onMaster runs fn in a synced block on the master engine.
func (y *SyncBuilder) onMaster(fn func(m *ModuleBuilder) error) error {
	master := y.seq.master()
	block, err := y.SyncedModules(master.engine.Alias)
	if err != nil {
		return err
	}
	return block.Do(func() error {
		return fn(master)
	})
}

// SyncedModules opens a synced block with one lane per engine. Without
// aliases, all engines take part. The module builders of the engines are
// active while the block is entered.
func (y *SyncBuilder) SyncedModules(aliases ...string) (*builder.SyncedBlock, error) {
	var modules []*ModuleBuilder
	if len(aliases) == 0 {
		modules = y.seq.modules
	} else {
		seen := map[string]bool{}
		for _, alias := range aliases {
			if seen[alias] {
				return nil, fmt.Errorf("engine %s used twice in synced block", alias)
			}
			seen[alias] = true
		}
		for _, e := range y.seq.system.Engines(engine.Filter{Aliases: aliases}) {
			modules = append(modules, y.seq.module(e.Alias))
		}
		if len(modules) != len(aliases) {
			return nil, &seqerr.LookupError{
				Kind:  "engine",
				Name:  strings.Join(aliases, ", "),
				Scope: y.seq.alias,
				Msg:   "unknown engine in synced block",
			}
		}
	}

	lanes := make([]builder.LaneBuilder, 0, len(modules))
	for _, m := range modules {
		lanes = append(lanes, builder.LaneBuilder{
			Engine:   m.engine.Alias,
			ModuleID: m.moduleID,
			Builder:  m.b,
		})
	}

	inst := insts.New(insts.OpSyncBlock)
	return y.b.OpenSynced(syncBlockText, y.seq.table.SyncedBlock(), inst, lanes)
}

// Assign assigns a value to a sync register in a synced block on the
// master engine.
func (y *SyncBuilder) Assign(name string, value any) (*flow.Statement, error) {
	if _, err := y.Register(name); err != nil {
		return nil, err
	}
	if err := y.seq.master().checkValue(value); err != nil {
		return nil, fmt.Errorf("sync register %s: %w", name, err)
	}

	var st *flow.Statement
	err := y.onMaster(func(m *ModuleBuilder) error {
		var err error
		st, err = m.Assign(name, value)
		return err
	})
	return st, err
}

// SetRegister sets a sync register in a synced block on the master engine.
func (y *SyncBuilder) SetRegister(r *expr.Register, value expr.Operand) (*flow.Statement, error) {
	if err := y.seq.master().ns.Check(r, value); err != nil {
		return nil, err
	}

	var st *flow.Statement
	err := y.onMaster(func(m *ModuleBuilder) error {
		var err error
		st, err = m.SetRegister(r, value)
		return err
	})
	return st, err
}
