// Package builder provides the state machine that appends statements to
// the open scopes of a statement tree.
//
// A Builder owns a stack of open sequences. Statements are only appended
// to the innermost sequence, and only while the builder is Active. Scoped
// constructs (loops, synchronized blocks) return a handle that must be
// entered before any further call on the builder and exited in reverse
// order of entry.
//
//	block, _ := b.OpenLoop("while [x] < 3:", timing, inst)
//	err := block.Do(func() error {
//		_, err := b.AddStatement("wait 100 ns", wait, nil, &delay)
//		return err
//	})
package builder

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/timing/latency"
)

// State is the state of a Builder.
type State uint8

// Builder states.
const (
	StateClosed State = iota
	StateInactive
	StateActive
	StateAwaitEntry
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateAwaitEntry:
		return "await-entry"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Handle kinds passed to a HandleFunc.
const (
	HandleMain      = "main"
	HandleWhile     = "while"
	HandleSyncWhile = "sync_while"
	HandleLane      = "lane"
)

// HandleFunc allocates the backend handle of a new sequence.
type HandleFunc func(kind, line string) flow.Handle

// Builder appends statements to one sequence stack of a tree. The sync
// sequence and every engine have their own Builder.
type Builder struct {
	name    string
	tree    *flow.Tree
	handles HandleFunc

	linePrefix  string
	lineCounter int
	stack       []flow.SeqID
	state       State

	// pending is the block returned by the last Open call until it is
	// entered.
	pending any

	// suspendedBy is the synced block that suspended this builder.
	suspendedBy *SyncedBlock
}

// New creates an inactive builder. The name is used in log messages.
// handles may be nil, in which case sequences get empty handles.
func New(tree *flow.Tree, name string, handles HandleFunc) *Builder {
	if handles == nil {
		handles = func(string, string) flow.Handle { return "" }
	}
	return &Builder{
		name:    name,
		tree:    tree,
		handles: handles,
		stack:   []flow.SeqID{},
		state:   StateInactive,
	}
}

// Name returns the name of the builder.
func (b *Builder) Name() string {
	return b.name
}

// Tree returns the tree the builder appends to.
func (b *Builder) Tree() *flow.Tree {
	return b.tree
}

// State returns the current state.
func (b *Builder) State() State {
	return b.state
}

// Line returns the line id of the next statement.
func (b *Builder) Line() string {
	return fmt.Sprintf("%s%d", b.linePrefix, b.lineCounter+1)
}

// Depth returns the number of open sequences.
func (b *Builder) Depth() int {
	return len(b.stack)
}

// Sequence returns the innermost open sequence, or nil.
func (b *Builder) Sequence() *flow.Sequence {
	if len(b.stack) == 0 {
		return nil
	}
	return b.tree.Sequence(b.stack[len(b.stack)-1])
}

// Check returns a SyntaxError if statements cannot be added.
func (b *Builder) Check() error {
	switch b.state {
	case StateClosed:
		return b.syntaxError("sequence builder is closed")
	case StateInactive:
		return b.syntaxError("not in active scope")
	case StateAwaitEntry:
		return b.syntaxError("expected scope entry before further calls")
	}
	return nil
}

func (b *Builder) syntaxError(format string, args ...any) error {
	return &seqerr.SyntaxError{Line: b.Line(), Msg: fmt.Sprintf(format, args...)}
}

// Close closes the builder. All further calls fail.
func (b *Builder) Close() {
	b.state = StateClosed
	b.pending = nil
}

// Start makes a fresh top-level sequence the active sequence. Line ids of
// its statements are the prefix followed by 1, 2, ...
func (b *Builder) Start(seq flow.SeqID, linePrefix string) error {
	if b.state != StateInactive || len(b.stack) > 0 {
		return b.syntaxError("cannot start sequence in state %s", b.state)
	}

	b.stack = append(b.stack, seq)
	b.linePrefix = linePrefix
	b.lineCounter = 0
	b.state = StateActive

	return nil
}

// finish closes the top-level sequence started with Start.
func (b *Builder) finish() {
	b.stack = b.stack[:0]
	b.state = StateInactive
}

// MinStartDelay returns the minimum start delay of a statement with the
// given timing appended now.
func (b *Builder) MinStartDelay(timing latency.TimingSpec) uint64 {
	seq := b.Sequence()
	if seq == nil {
		return 0
	}
	return latency.MinStartDelay(seq.MinStartDelayNext(), timing)
}

// AddStatement appends a statement to the innermost sequence. A nil start
// delay selects the minimum start delay.
func (b *Builder) AddStatement(
	text string,
	timing latency.TimingSpec,
	inst *insts.Instruction,
	startDelay *uint64,
) (*flow.Statement, error) {
	if err := b.Check(); err != nil {
		return nil, err
	}

	seq := b.Sequence()
	minDelay := latency.MinStartDelay(seq.MinStartDelayNext(), timing)
	delay := minDelay
	if startDelay != nil {
		delay = *startDelay
	}
	if delay < minDelay {
		return nil, &seqerr.TimingViolation{
			Line:      b.Line(),
			Text:      text,
			Requested: delay,
			Minimum:   minDelay,
		}
	}

	st := flow.NewStatement(b.Line(), delay, minDelay, text, timing, inst)
	st.NonDeterministic = timing.NonDeterministic

	if err := b.tree.Append(seq.ID, st); err != nil {
		return nil, err
	}
	b.lineCounter++

	log.WithFields(log.Fields{
		"builder": b.name,
		"line":    st.Line,
		"delay":   st.StartDelay,
		"tail":    seq.Tail,
	}).Debugf("append %s", text)

	return st, nil
}

// OpenRoot returns the block of a top-level sequence, e.g. the main
// sequence. The builder must be inactive.
func (b *Builder) OpenRoot(seq flow.SeqID) (*Block, error) {
	if b.state != StateInactive || len(b.stack) > 0 {
		if b.state == StateClosed {
			return nil, b.Check()
		}
		return nil, b.syntaxError("cannot open root sequence in state %s", b.state)
	}

	blk := &Block{builder: b, seq: seq}
	b.await(blk)
	return blk, nil
}

// OpenLoop appends a branching statement and returns the block of its
// body. The block must be entered before the next call.
func (b *Builder) OpenLoop(
	kind, text string,
	timing latency.TimingSpec,
	inst *insts.Instruction,
) (*Block, error) {
	st, err := b.AddStatement(text, timing, inst, nil)
	if err != nil {
		return nil, err
	}

	body := b.tree.AddBody(st, timing.EntryLatencyNs(), b.handles(kind, st.Line))
	blk := &Block{builder: b, stmt: st, seq: body.ID}
	b.await(blk)

	return blk, nil
}

// LaneBuilder is an engine builder taking part in a synced block.
type LaneBuilder struct {
	Engine string

	// ModuleID is appended to the line of the block to get the line of
	// the lane, e.g. "3" + "A".
	ModuleID string

	Builder *Builder
}

// OpenSynced appends a synced block statement with one lane per builder.
func (b *Builder) OpenSynced(
	text string,
	timing latency.TimingSpec,
	inst *insts.Instruction,
	lanes []LaneBuilder,
) (*SyncedBlock, error) {
	if len(lanes) == 0 {
		return nil, b.syntaxError("synced block without modules")
	}

	st, err := b.AddStatement(text, timing, inst, nil)
	if err != nil {
		return nil, err
	}

	blk := &SyncedBlock{builder: b, stmt: st, lanes: make([]lane, 0, len(lanes))}
	for _, l := range lanes {
		line := st.Line + l.ModuleID
		seq := b.tree.AddLane(st, l.Engine, line, timing.EntryLatencyNs(),
			b.handles(HandleLane, line))
		blk.lanes = append(blk.lanes, lane{LaneBuilder: l, seq: seq.ID})
	}
	b.await(blk)

	return blk, nil
}

func (b *Builder) await(blk any) {
	b.state = StateAwaitEntry
	b.pending = blk
}

func (b *Builder) enter(blk any, seq flow.SeqID) error {
	if b.state != StateAwaitEntry {
		if b.state == StateClosed {
			return b.Check()
		}
		return b.syntaxError("scope entered in state %s", b.state)
	}
	if b.pending != blk {
		return b.syntaxError("entered scope is not the last opened scope")
	}

	b.pending = nil
	b.state = StateActive
	if seq != flow.NoSequence {
		b.stack = append(b.stack, seq)
	}
	return nil
}
