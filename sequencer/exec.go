package sequencer

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/hviseq/backend"
	"github.com/sarchlab/hviseq/expr"
)

// DefaultRunTimeout limits Run when the context has no deadline.
const DefaultRunTimeout = 5 * time.Second

// Exec is a compiled program.
//
//	x, _ := seq.Compile(ctx)
//	_ = x.Load()
//	_ = x.SetRegister(nLoops, 2)
//	_ = x.Start()
//	for x.IsRunning() {
//	}
//	_ = x.Close()
type Exec struct {
	seq *Sequencer
	x   backend.Executable
}

func newExec(s *Sequencer, x backend.Executable) *Exec {
	return &Exec{seq: s, x: x}
}

// Load loads the program on the hardware.
func (e *Exec) Load() error {
	return e.x.Load()
}

// Unload releases the hardware.
func (e *Exec) Unload() error {
	return e.x.Unload()
}

// Start starts the program without waiting for it.
func (e *Exec) Start() error {
	log.WithField("program", e.seq.alias).Info("start HVI")
	return e.x.Start()
}

// Run starts the program and waits until it has finished.
func (e *Exec) Run(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRunTimeout)
		defer cancel()
	}
	return e.x.Run(ctx)
}

// Stop stops the program.
func (e *Exec) Stop() error {
	return e.x.Stop()
}

// IsRunning returns true while the program runs.
func (e *Exec) IsRunning() bool {
	return e.x.IsRunning()
}

// SetRegister sets the initial value of a register before the program
// starts. A module register is set on all its engines.
func (e *Exec) SetRegister(r expr.RegisterSet, value int) error {
	var err error
	for _, m := range r.Members() {
		err = errors.Join(err, e.x.SetInitialValue(m.Engine, m.Name, value))
	}
	return err
}

// WriteRegister writes a register of the running program. A module
// register is written on all its engines.
func (e *Exec) WriteRegister(r expr.RegisterSet, value int) error {
	var err error
	for _, m := range r.Members() {
		err = errors.Join(err, e.x.WriteRegister(m.Engine, m.Name, value))
	}
	return err
}

// ReadRegister reads a register.
func (e *Exec) ReadRegister(r *expr.Register) (int, error) {
	return e.x.ReadRegister(r.Engine, r.Name)
}

// ReadMultiple reads a module register. The result maps engine alias to
// value.
func (e *Exec) ReadMultiple(r *expr.ModuleRegister) (map[string]int, error) {
	values := make(map[string]int, len(r.Members()))
	for _, m := range r.Members() {
		v, err := e.ReadRegister(m)
		if err != nil {
			return nil, err
		}
		values[m.Engine] = v
	}
	return values, nil
}

// ListRegisters reads all registers. The result is keyed "engine|name".
func (e *Exec) ListRegisters() (map[string]int, error) {
	values := map[string]int{}
	for _, m := range e.seq.modules {
		for _, r := range e.seq.namespaces[m.engine.Alias].Registers() {
			v, err := e.ReadRegister(r)
			if err != nil {
				return nil, err
			}
			values[r.Engine+"|"+r.Name] = v
		}
	}
	return values, nil
}

// Close unloads the program. The Exec cannot be used afterwards.
func (e *Exec) Close() error {
	return e.x.Close()
}
