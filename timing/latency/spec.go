package latency

import (
	"math"

	"github.com/sarchlab/akita/v4/sim"
)

// ClockFrequency is the HVI engine clock. All engines of a chassis run on
// this clock, so the cycle length is fixed and not configurable.
const ClockFrequency = 100 * sim.MHz

// NsPerCycle is the length of one engine clock cycle in nanoseconds.
var NsPerCycle = uint64(math.Round(float64(ClockFrequency.Period()) * 1e9))

// TimingSpec describes the timing constraints of one instruction.
// All values are in clock cycles.
type TimingSpec struct {
	// FetchCycles is the time the sequencer needs to fetch the instruction.
	FetchCycles uint64 `json:"fetch_cycles"`

	// ExecutionCycles is the execution time of the instruction on the
	// engine. Zero when unknown or not relevant for scheduling.
	ExecutionCycles uint64 `json:"execution_cycles,omitempty"`

	// StartLatencyCycles is added to the tail of the previous statement to
	// get the minimum start delay of this instruction.
	StartLatencyCycles uint64 `json:"start_latency_cycles,omitempty"`

	// EntryLatencyCycles is the minimum delay before the first statement
	// of a sequence opened by this instruction.
	EntryLatencyCycles uint64 `json:"entry_latency_cycles,omitempty"`

	// EndLatencyCycles is the minimum time after this instruction before
	// the next one may start, when longer than the fetch time.
	EndLatencyCycles uint64 `json:"end_latency_cycles,omitempty"`

	// IterationOverheadCycles is the loop overhead per iteration.
	IterationOverheadCycles uint64 `json:"iteration_overhead_cycles,omitempty"`

	// ExitOverheadCycles is the overhead when leaving a loop.
	ExitOverheadCycles uint64 `json:"exit_overhead_cycles,omitempty"`

	// Synchronized is set for instructions executed by all engines together.
	Synchronized bool `json:"synchronized,omitempty"`

	// NonDeterministic is a symbolic label for runtime dependent duration.
	NonDeterministic string `json:"non_deterministic,omitempty"`

	// Resources and Dependencies are hazard identifiers. They are kept
	// for bookkeeping and are not enforced by the scheduler.
	Resources    []string `json:"resources,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// CyclesToNs converts a number of cycles to nanoseconds.
func CyclesToNs(cycles uint64) uint64 {
	return NsPerCycle * cycles
}

// TailNs returns the minimum time after the instruction before the next
// instruction may start.
func (s TimingSpec) TailNs() uint64 {
	return CyclesToNs(max(s.FetchCycles, s.EndLatencyCycles))
}

// EntryLatencyNs returns the entry latency in nanoseconds.
func (s TimingSpec) EntryLatencyNs() uint64 {
	return CyclesToNs(s.EntryLatencyCycles)
}

// IterationOverheadNs returns the iteration overhead in nanoseconds.
func (s TimingSpec) IterationOverheadNs() uint64 {
	return CyclesToNs(s.IterationOverheadCycles)
}

// ExitOverheadNs returns the exit overhead in nanoseconds.
func (s TimingSpec) ExitOverheadNs() uint64 {
	return CyclesToNs(s.ExitOverheadCycles)
}

// ExecutionNs returns the execution time in nanoseconds.
func (s TimingSpec) ExecutionNs() uint64 {
	return CyclesToNs(s.ExecutionCycles)
}

// StartLatencyNs returns the start latency in nanoseconds.
func (s TimingSpec) StartLatencyNs() uint64 {
	return CyclesToNs(s.StartLatencyCycles)
}

// MinStartDelay returns the minimum start delay of an instruction with
// the given spec appended after a statement with the given tail.
func MinStartDelay(previousTail uint64, spec TimingSpec) uint64 {
	return previousTail + spec.StartLatencyNs()
}

// WithResources returns a copy of the spec with the hazard identifiers set.
func (s TimingSpec) WithResources(resources, dependencies []string) TimingSpec {
	s.Resources = append([]string(nil), resources...)
	s.Dependencies = append([]string(nil), dependencies...)
	return s
}
