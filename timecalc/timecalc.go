// Package timecalc computes the elapsed time between two statements of a
// statement tree.
package timecalc

import (
	"fmt"
	"slices"

	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/seqerr"
)

// Calc answers elapsed time queries on a tree.
type Calc struct {
	tree *flow.Tree
}

// New creates a calculator for a tree.
func New(tree *flow.Tree) *Calc {
	return &Calc{tree: tree}
}

// TimeBetweenLines is TimeBetween for statements given by line id.
func (c *Calc) TimeBetweenLines(start, end string) (flow.Duration, error) {
	s, ok := c.tree.Lookup(start)
	if !ok {
		return flow.Duration{}, &seqerr.LookupError{Kind: "statement", Name: start}
	}
	e, ok := c.tree.Lookup(end)
	if !ok {
		return flow.Duration{}, &seqerr.LookupError{Kind: "statement", Name: end}
	}
	return c.TimeBetween(s, e)
}

// TimeBetween returns the time from the start of statement start to the
// start of statement end. Start must be declared before end and must be in
// the sequence of end or in one of its ancestors. Loops and
// runtime-dependent waits between the two contribute symbolic terms.
func (c *Calc) TimeBetween(start, end *flow.Statement) (flow.Duration, error) {
	if start.Order() > end.Order() {
		return flow.Duration{}, fmt.Errorf("start %s must be before end %s",
			start.Line, end.Line)
	}

	chain, err := c.chain(start, end)
	if err != nil {
		return flow.Duration{}, err
	}

	d := flow.Duration{Terms: []string{}}
	for i, seq := range chain {
		var next *flow.Sequence
		if i+1 < len(chain) {
			next = chain[i+1]
		}

		for _, st := range seq.Statements {
			after := st.Order() > start.Order()
			if after {
				d.Ns += st.StartDelay
			}

			if st == end {
				if after && st.NonDeterministic != "" {
					d.Terms = append(d.Terms, st.NonDeterministic)
				}
				return d, nil
			}

			// descend into the branch or lane holding end
			if next != nil && st.Owns(next.ID) {
				break
			}

			if after && st.NonDeterministic != "" {
				d.Terms = append(d.Terms, st.NonDeterministic)
			}
		}
	}

	return flow.Duration{}, &seqerr.LookupError{Kind: "statement", Name: end.Line,
		Msg: "end not found on path"}
}

// chain returns the sequences from the one holding start down to the one
// holding end.
func (c *Calc) chain(start, end *flow.Statement) ([]*flow.Sequence, error) {
	var chain []*flow.Sequence
	for seq := c.tree.Sequence(end.Sequence); seq != nil; seq = c.tree.Parent(seq) {
		chain = append(chain, seq)
		if seq.Find(start.Line) >= 0 {
			slices.Reverse(chain)
			return chain, nil
		}
	}

	return nil, &seqerr.LookupError{
		Kind: "statement",
		Name: start.Line,
		Msg:  fmt.Sprintf("not reachable from %s", end.Line),
	}
}
