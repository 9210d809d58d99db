// Package backend defines the interface to the compiler and runtime that
// turn a statement tree into an executable HVI program.
package backend

import (
	"context"

	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/flow"
)

// Program is the input of a backend compiler.
type Program struct {
	Alias string
	Tree  *flow.Tree
	Root  flow.SeqID

	// Engines lists the engines in system order. The first engine is the
	// master engine executing the sync sequence.
	Engines []*engine.Engine

	// Registers holds the registers per engine alias in order of creation.
	Registers map[string][]*expr.Register
}

// Master returns the alias of the master engine.
func (p *Program) Master() string {
	if len(p.Engines) == 0 {
		return ""
	}
	return p.Engines[0].Alias
}

// Backend compiles programs. Sequence handles are allocated by the
// backend while the tree is built.
type Backend interface {
	NewHandle(kind, line string) flow.Handle
	Compile(ctx context.Context, p *Program) (Executable, error)
}

// Executable is a compiled program.
type Executable interface {
	Load() error
	Unload() error

	// Run starts the program and waits until it has finished or the
	// context is done.
	Run(ctx context.Context) error
	Start() error
	Stop() error
	IsRunning() bool

	// SetInitialValue sets the value a register has when the program
	// starts.
	SetInitialValue(engine, name string, value int) error

	// WriteRegister writes a register of a running program.
	WriteRegister(engine, name string, value int) error

	ReadRegister(engine, name string) (int, error)
	Close() error
}
