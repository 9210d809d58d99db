package flow

import (
	"fmt"
	"strings"

	"github.com/sarchlab/hviseq/seqerr"
)

// Sequence is an ordered list of statements executed by one engine, or by
// all engines together for the sync sequence.
type Sequence struct {
	ID     SeqID
	Parent SeqID
	Handle Handle
	Line   string

	EntryLatencyNs uint64

	// Tail is the minimum start delay of the next statement appended to
	// the sequence, or of the statement after the sequence when closed.
	Tail uint64

	// Duration is the sum of the start delays of all statements.
	Duration uint64

	Statements        []*Statement
	NonDeterministics []string
}

func newSequence(id, parent SeqID, line string, entryLatencyNs uint64, h Handle) *Sequence {
	return &Sequence{
		ID:                id,
		Parent:            parent,
		Handle:            h,
		Line:              line,
		EntryLatencyNs:    entryLatencyNs,
		Tail:              entryLatencyNs,
		Statements:        []*Statement{},
		NonDeterministics: []string{},
	}
}

// MinStartDelayNext returns the minimum start delay for the next statement.
func (s *Sequence) MinStartDelayNext() uint64 {
	return s.Tail
}

// Last returns the last statement or nil when the sequence is empty.
func (s *Sequence) Last() *Statement {
	if len(s.Statements) == 0 {
		return nil
	}
	return s.Statements[len(s.Statements)-1]
}

// Find returns the index of the statement with the given line, or -1.
func (s *Sequence) Find(line string) int {
	for i, st := range s.Statements {
		if st.Line == line {
			return i
		}
	}
	return -1
}

// AddNonDeterministic adds a symbolic term to the sequence duration.
func (s *Sequence) AddNonDeterministic(term string) {
	s.NonDeterministics = append(s.NonDeterministics, term)
}

// TotalDuration returns the sum of all start delays and the symbolic terms
// of the statements, in statement order.
func (s *Sequence) TotalDuration() Duration {
	d := Duration{Terms: []string{}}
	for _, st := range s.Statements {
		d.Ns += st.StartDelay
		if st.NonDeterministic != "" {
			d.Terms = append(d.Terms, st.NonDeterministic)
		}
	}
	d.Terms = append(d.Terms, s.NonDeterministics...)
	return d
}

// Tree is the arena that owns all sequences of a program.
type Tree struct {
	sequences []*Sequence
	lines     map[string]*Statement
	nextOrder uint64
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		sequences: []*Sequence{},
		lines:     map[string]*Statement{},
	}
}

// NewSequence adds a sequence to the arena.
func (t *Tree) NewSequence(parent SeqID, line string, entryLatencyNs uint64, h Handle) *Sequence {
	id := SeqID(len(t.sequences))
	seq := newSequence(id, parent, line, entryLatencyNs, h)
	t.sequences = append(t.sequences, seq)
	return seq
}

// Sequence returns the sequence with the given id, or nil.
func (t *Tree) Sequence(id SeqID) *Sequence {
	if id < 0 || int(id) >= len(t.sequences) {
		return nil
	}
	return t.sequences[id]
}

// Parent returns the parent of a sequence, or nil for a root.
func (t *Tree) Parent(seq *Sequence) *Sequence {
	return t.Sequence(seq.Parent)
}

// Len returns the number of sequences.
func (t *Tree) Len() int {
	return len(t.sequences)
}

// Lookup returns the statement with the given line.
func (t *Tree) Lookup(line string) (*Statement, bool) {
	st, ok := t.lines[line]
	return st, ok
}

// Append appends a statement to a sequence. It fails when the start delay
// is shorter than the tail of the sequence; the tree is not changed then.
func (t *Tree) Append(id SeqID, st *Statement) error {
	seq := t.Sequence(id)
	if seq == nil {
		return fmt.Errorf("append %s: unknown sequence %d", st.Line, id)
	}

	if st.StartDelay < seq.Tail {
		// don't step on the tail
		return &seqerr.TimingViolation{
			Line:      st.Line,
			Text:      st.Text,
			Requested: st.StartDelay,
			Minimum:   seq.Tail,
		}
	}

	if _, dup := t.lines[st.Line]; dup {
		return &seqerr.SyntaxError{Line: st.Line, Msg: "duplicate line"}
	}

	st.Sequence = id
	st.order = t.nextOrder
	t.nextOrder++
	t.lines[st.Line] = st

	seq.Tail = st.Timing.TailNs()
	seq.Statements = append(seq.Statements, st)
	seq.Duration += st.StartDelay

	return nil
}

// AddBody creates the loop body of an appended statement.
func (t *Tree) AddBody(st *Statement, entryLatencyNs uint64, h Handle) *Sequence {
	seq := t.NewSequence(st.Sequence, st.Line, entryLatencyNs, h)
	st.Kind = KindBranching
	st.Body = append(st.Body, seq.ID)
	return seq
}

// AddLane creates the sequence of an engine in an appended sync block.
func (t *Tree) AddLane(st *Statement, engine, line string, entryLatencyNs uint64, h Handle) *Sequence {
	seq := t.NewSequence(st.Sequence, line, entryLatencyNs, h)
	st.Kind = KindSyncBlock
	st.Lanes = append(st.Lanes, Lane{Engine: engine, Sequence: seq.ID})
	return seq
}

// CloseBranch finalizes a loop when its body is closed. The statement
// after the loop may not start before the loop tail plus the longest body.
// The number of iterations is unknown, so the loop contributes a symbolic
// term.
func (t *Tree) CloseBranch(st *Statement) {
	var longest uint64
	for _, id := range st.Body {
		body := t.Sequence(id)
		longest = max(longest, body.TotalDuration().Ns)
		st.NonDeterministic = fmt.Sprintf("N_%s*(%s + %d)",
			st.Line, body.TotalDuration(), st.Timing.IterationOverheadNs())
	}

	if parent := t.Sequence(st.Sequence); parent != nil {
		parent.Tail = st.Timing.TailNs() + longest
	}
}

// CloseSyncBlock finalizes a synchronized block. The lanes rejoin at the
// slowest lane.
func (t *Tree) CloseSyncBlock(st *Statement) {
	var longest uint64
	durations := make([]string, 0, len(st.Lanes))
	for _, l := range st.Lanes {
		d := t.Sequence(l.Sequence).TotalDuration()
		longest = max(longest, d.Ns)
		durations = append(durations, d.String())
	}
	st.NonDeterministic = "max(" + strings.Join(durations, ", ") + ")"

	if parent := t.Sequence(st.Sequence); parent != nil {
		parent.Tail = st.Timing.TailNs() + longest
	}
}

// Walk visits all statements of a sequence and its children depth first,
// in statement order.
func (t *Tree) Walk(id SeqID, visit func(st *Statement, depth int) error) error {
	return t.walk(id, 0, visit)
}

func (t *Tree) walk(id SeqID, depth int, visit func(*Statement, int) error) error {
	seq := t.Sequence(id)
	if seq == nil {
		return nil
	}
	for _, st := range seq.Statements {
		if err := visit(st, depth); err != nil {
			return err
		}
		for _, child := range st.Children() {
			if err := t.walk(child, depth+1, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
