// Package hazard detects register hazards between the statements of a
// sequence.
//
// A statement that writes a register (a resource) takes its execution time
// before the value is available. A later statement in the same sequence
// that reads or writes the register before then sees a stale value. The
// scheduler does not enforce this; the unit only reports the hazards.
package hazard

import (
	"slices"

	"github.com/sarchlab/hviseq/flow"
)

// Kind is the type of a hazard.
type Kind int

const (
	// KindReadAfterWrite means the consumer reads a register that is still
	// being written.
	KindReadAfterWrite Kind = iota
	// KindWriteAfterWrite means the consumer writes a register that is
	// still being written.
	KindWriteAfterWrite
)

func (k Kind) String() string {
	if k == KindWriteAfterWrite {
		return "WAW"
	}
	return "RAW"
}

// Hazard is a statement that starts before a resource it depends on is
// ready.
type Hazard struct {
	Kind         Kind
	Line         string
	ProducerLine string
	Resource     string

	// StallNs is the extra start delay that resolves the hazard.
	StallNs uint64
}

// Unit detects hazards.
type Unit struct{}

// NewUnit creates a new hazard detection unit.
func NewUnit() *Unit {
	return &Unit{}
}

// Detect checks a consumer that starts elapsedNs after the producer.
func (u *Unit) Detect(producer, consumer *flow.Statement, elapsedNs uint64) (Hazard, bool) {
	ready := producer.Timing.ExecutionNs()
	if ready <= elapsedNs {
		return Hazard{}, false
	}

	for _, r := range producer.Timing.Resources {
		kind := KindReadAfterWrite
		switch {
		case slices.Contains(consumer.Timing.Dependencies, r):
		case slices.Contains(consumer.Timing.Resources, r):
			kind = KindWriteAfterWrite
		default:
			continue
		}

		return Hazard{
			Kind:         kind,
			Line:         consumer.Line,
			ProducerLine: producer.Line,
			Resource:     r,
			StallNs:      ready - elapsedNs,
		}, true
	}

	return Hazard{}, false
}

// Scan returns the hazards in a sequence and all its child sequences, in
// statement order.
func (u *Unit) Scan(tree *flow.Tree, id flow.SeqID) []Hazard {
	hazards := []Hazard{}

	seq := tree.Sequence(id)
	if seq == nil {
		return hazards
	}

	for i, consumer := range seq.Statements {
		hazards = append(hazards, u.scanBack(seq.Statements[:i], consumer)...)

		for _, child := range consumer.Children() {
			hazards = append(hazards, u.Scan(tree, child)...)
		}
	}

	return hazards
}

// scanBack checks the consumer against the statements before it, nearest
// first. The time across a loop or synced block is unknown, so the scan
// stops there.
func (u *Unit) scanBack(before []*flow.Statement, consumer *flow.Statement) []Hazard {
	var hazards []Hazard

	elapsed := consumer.StartDelay
	for j := len(before) - 1; j >= 0; j-- {
		producer := before[j]
		if producer.Kind != flow.KindInstruction {
			break
		}

		if h, ok := u.Detect(producer, consumer, elapsed); ok {
			hazards = append(hazards, h)
		}

		elapsed += producer.StartDelay
	}

	return hazards
}
