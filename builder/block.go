package builder

import (
	"errors"

	"github.com/sarchlab/hviseq/flow"
)

// Block is the handle of a loop body or a top-level sequence.
type Block struct {
	builder *Builder

	// stmt is nil for a top-level sequence.
	stmt *flow.Statement
	seq  flow.SeqID

	hooks    []func() error
	hooksRun bool
}

// Statement returns the branching statement, or nil for a top-level
// sequence.
func (k *Block) Statement() *flow.Statement {
	return k.stmt
}

// Sequence returns the id of the body sequence.
func (k *Block) Sequence() flow.SeqID {
	return k.seq
}

// OnExit registers a function that appends statements at the end of the
// body. Hooks run once, on the first Exit, while the body is still open.
func (k *Block) OnExit(hook func() error) {
	k.hooks = append(k.hooks, hook)
}

// Enter makes the body the active sequence.
func (k *Block) Enter() (*flow.Statement, error) {
	if err := k.builder.enter(k, k.seq); err != nil {
		return nil, err
	}
	return k.stmt, nil
}

// Exit closes the body. The body must be the innermost open sequence.
func (k *Block) Exit() error {
	b := k.builder
	if err := k.checkTop(); err != nil {
		return err
	}

	var hookErr error
	if !k.hooksRun {
		k.hooksRun = true
		for _, hook := range k.hooks {
			if err := hook(); err != nil {
				hookErr = errors.Join(hookErr, err)
			}
		}
	}

	b.stack = b.stack[:len(b.stack)-1]
	if len(b.stack) == 0 {
		b.state = StateInactive
	} else if k.stmt != nil {
		b.tree.CloseBranch(k.stmt)
	}

	return hookErr
}

func (k *Block) checkTop() error {
	b := k.builder
	if err := b.Check(); err != nil {
		return err
	}
	if len(b.stack) == 0 || b.stack[len(b.stack)-1] != k.seq {
		return b.syntaxError("scope exited before its inner scopes")
	}
	return nil
}

// Do enters the block, calls fn and exits the block, also when fn fails.
func (k *Block) Do(fn func() error) (err error) {
	if _, err := k.Enter(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, k.Exit())
	}()
	return fn()
}

type lane struct {
	LaneBuilder
	seq flow.SeqID
}

// SyncedBlock is the handle of a synchronized block. Entering it starts
// the lane of every participating engine and suspends the builder that
// opened it until the block is exited.
type SyncedBlock struct {
	builder *Builder
	stmt    *flow.Statement
	lanes   []lane
}

// Statement returns the sync block statement.
func (k *SyncedBlock) Statement() *flow.Statement {
	return k.stmt
}

// Enter starts the lanes. If a lane builder cannot start, the lanes
// already started are rolled back and the block is not entered.
func (k *SyncedBlock) Enter() (*flow.Statement, error) {
	b := k.builder
	if b.state != StateAwaitEntry || b.pending != k {
		return nil, b.enter(k, flow.NoSequence)
	}

	for i, l := range k.lanes {
		if err := l.Builder.Start(l.seq, b.tree.Sequence(l.seq).Line); err != nil {
			for _, started := range k.lanes[:i] {
				started.Builder.finish()
			}
			return nil, err
		}
	}

	if err := b.enter(k, flow.NoSequence); err != nil {
		return nil, err
	}
	b.state = StateInactive
	b.suspendedBy = k

	return k.stmt, nil
}

// Exit closes all lanes and resumes the builder that opened the block.
// Every lane must be back at its top-level sequence.
func (k *SyncedBlock) Exit() error {
	b := k.builder
	if b.suspendedBy != k {
		if err := b.Check(); err != nil {
			return err
		}
		return b.syntaxError("synced block exited before it was entered")
	}

	for _, l := range k.lanes {
		lb := l.Builder
		if lb.state != StateActive || len(lb.stack) != 1 || lb.stack[0] != l.seq {
			return lb.syntaxError("lane %s has open scopes", l.Engine)
		}
	}

	for _, l := range k.lanes {
		l.Builder.finish()
	}

	b.suspendedBy = nil
	b.state = StateActive
	b.tree.CloseSyncBlock(k.stmt)

	return nil
}

// Do enters the block, calls fn and exits the block, also when fn fails.
func (k *SyncedBlock) Do(fn func() error) (err error) {
	if _, err := k.Enter(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, k.Exit())
	}()
	return fn()
}
