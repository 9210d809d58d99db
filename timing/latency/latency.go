// Package latency provides the instruction timing model for HVI sequences.
//
// The timing values are based on the Keysight HVI-2 sequencer and can be
// configured via TimingConfig. All cycle counts are converted to
// nanoseconds with the fixed NsPerCycle of the engine clock.
package latency

import (
	"github.com/sarchlab/hviseq/insts"
)

// Table provides instruction timing lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new timing table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new timing table with custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetTiming returns the timing spec of a fixed-timing instruction.
// Loops, waits and synced blocks depend on their arguments and have
// dedicated methods.
func (t *Table) GetTiming(inst *insts.Instruction) TimingSpec {
	if inst == nil {
		return TimingSpec{FetchCycles: 1}
	}

	switch inst.Op {
	case insts.OpDelay, insts.OpWait:
		return TimingSpec{FetchCycles: 1}

	case insts.OpWaitTime:
		return t.WaitRegister()

	case insts.OpSyncBlock:
		return t.SyncedBlock()

	default:
		return TimingSpec{
			FetchCycles:     t.fetchCycles(inst.Name),
			ExecutionCycles: t.config.ExecutionCycles[inst.Name],
		}
	}
}

func (t *Table) fetchCycles(name string) uint64 {
	if cycles, ok := t.config.FetchCycles[name]; ok {
		return cycles
	}
	return 1
}

// WaitConstant returns the timing of a delay statement. A delay is an
// empty statement with a start delay.
func (t *Table) WaitConstant() TimingSpec {
	return TimingSpec{FetchCycles: 1}
}

// WaitRegister returns the timing of a wait on a register value.
func (t *Table) WaitRegister() TimingSpec {
	return TimingSpec{StartLatencyCycles: t.config.WaitRegisterStartCycles}
}

// WaitFor returns the timing of a wait for a condition.
func (t *Table) WaitFor(condition string) TimingSpec {
	return TimingSpec{FetchCycles: 1, NonDeterministic: condition}
}

// While returns the timing of a local while loop evaluating nConditions
// conditions.
func (t *Table) While(nConditions int) TimingSpec {
	n := uint64(nConditions)
	c := t.config
	return TimingSpec{
		FetchCycles:             c.WhileFetchCycles + n,
		StartLatencyCycles:      c.WhileStartLatencyCycles + n,
		EntryLatencyCycles:      c.WhileEntryLatencyCycles,
		EndLatencyCycles:        c.WhileEndLatencyCycles + n,
		IterationOverheadCycles: c.WhileIterationCycles + n,
	}
}

// SyncWhile returns the timing of a synchronized while loop. The
// condition is distributed to all engines, which adds the propagation
// delay. The last statement of the body always gets the reserved end
// latency.
func (t *Table) SyncWhile(nConditions int) TimingSpec {
	n := uint64(nConditions)
	c := t.config
	p := c.PropagationDelayCycles
	last := c.SyncWhileLastStatementCycles
	return TimingSpec{
		FetchCycles:             c.WhileFetchCycles + n,
		StartLatencyCycles:      c.WhileStartLatencyCycles + n + p,
		EntryLatencyCycles:      c.SyncWhileEntryCycles + p + last,
		EndLatencyCycles:        c.SyncWhileEndCycles + n + p + last,
		IterationOverheadCycles: c.WhileIterationCycles + n,
		Synchronized:            true,
	}
}

// SyncedBlock returns the timing of a synchronized multi-sequence block.
func (t *Table) SyncedBlock() TimingSpec {
	return TimingSpec{
		EntryLatencyCycles: t.config.SyncedBlockEntryCycles,
		EndLatencyCycles:   t.config.SyncedBlockEndCycles,
		Synchronized:       true,
	}
}

// MainEntryLatencyNs returns the entry latency of the main sync sequence.
func (t *Table) MainEntryLatencyNs() uint64 {
	return t.config.MainEntryLatencyNs
}

// IsVariable returns true if the duration of the instruction is only
// known at runtime.
func (t *Table) IsVariable(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpWaitTime, insts.OpWait, insts.OpWhile, insts.OpSyncWhile:
		return true
	default:
		return false
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
