// Package flow provides the statement tree of a timed program.
//
// Statements are grouped in sequences. Loop bodies and the per-engine
// lanes of a synchronized block are child sequences owned by the statement
// that opened them. All sequences live in a Tree arena and refer to their
// parent by SeqID, so walking up the tree never needs an owning pointer.
package flow

import (
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/timing/latency"
)

// SeqID identifies a sequence in a Tree.
type SeqID int

// NoSequence is the parent of the root sequence.
const NoSequence SeqID = -1

// Handle is an opaque reference to the backend object of a sequence.
type Handle string

// Kind tells which child sequences a statement owns.
type Kind uint8

// Statement kinds.
const (
	KindInstruction Kind = iota
	KindBranching
	KindSyncBlock
)

func (k Kind) String() string {
	switch k {
	case KindBranching:
		return "branching"
	case KindSyncBlock:
		return "sync-block"
	default:
		return "instruction"
	}
}

// Lane is the sequence of one engine in a synchronized block.
type Lane struct {
	Engine   string
	Sequence SeqID
}

// Statement is a single timed statement in a sequence.
type Statement struct {
	// Line identifies the statement, e.g. "4", "2A3".
	Line string

	// Sequence is the sequence the statement was appended to.
	Sequence SeqID

	// StartDelay is the delay in ns after the start of the previous
	// statement in the same sequence.
	StartDelay uint64

	Text          string
	MinStartDelay uint64
	Timing        latency.TimingSpec

	// NonDeterministic is a symbolic duration term; empty when the
	// duration is fully known.
	NonDeterministic string

	Kind Kind
	Inst *insts.Instruction

	// Body holds the loop body of a branching statement.
	Body []SeqID

	// Lanes holds the engine sequences of a sync block.
	Lanes []Lane

	order uint64
}

// NewStatement creates an instruction statement.
func NewStatement(
	line string,
	startDelay, minStartDelay uint64,
	text string,
	timing latency.TimingSpec,
	inst *insts.Instruction,
) *Statement {
	return &Statement{
		Line:          line,
		Sequence:      NoSequence,
		StartDelay:    startDelay,
		Text:          text,
		MinStartDelay: minStartDelay,
		Timing:        timing,
		Kind:          KindInstruction,
		Inst:          inst,
		Body:          []SeqID{},
		Lanes:         []Lane{},
	}
}

// Alias returns the name of the statement as used by the backend.
func (s *Statement) Alias() string {
	return s.Line + ":" + s.Text
}

// Order returns the position of the statement in declaration order.
func (s *Statement) Order() uint64 {
	return s.order
}

// Owns returns true if the sequence is a body or lane of the statement.
func (s *Statement) Owns(id SeqID) bool {
	for _, b := range s.Body {
		if b == id {
			return true
		}
	}
	for _, l := range s.Lanes {
		if l.Sequence == id {
			return true
		}
	}
	return false
}

// Children returns the body or lane sequences in order.
func (s *Statement) Children() []SeqID {
	children := make([]SeqID, 0, len(s.Body)+len(s.Lanes))
	children = append(children, s.Body...)
	for _, l := range s.Lanes {
		children = append(children, l.Sequence)
	}
	return children
}

// Lane returns the sequence of an engine in a sync block.
func (s *Statement) Lane(engine string) (SeqID, bool) {
	for _, l := range s.Lanes {
		if l.Engine == engine {
			return l.Sequence, true
		}
	}
	return NoSequence, false
}
