package backend

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/seqerr"
)

// DefaultMaxRegisters is the number of registers per engine of the
// simulated hardware.
const DefaultMaxRegisters = 16

// Simulator is an in-memory backend. It compiles programs by checking the
// constraints the vendor compiler checks and runs them without hardware.
type Simulator struct {
	maxRegisters int
	handles      map[flow.Handle]string
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithMaxRegisters sets the number of registers per engine.
func WithMaxRegisters(n int) SimulatorOption {
	return func(s *Simulator) {
		s.maxRegisters = n
	}
}

// NewSimulator creates a simulated backend.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		maxRegisters: DefaultMaxRegisters,
		handles:      map[flow.Handle]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandle allocates a sequence handle.
func (s *Simulator) NewHandle(kind, line string) flow.Handle {
	h := flow.Handle(kind + "-" + sim.GetIDGenerator().Generate())
	s.handles[h] = line
	return h
}

var registerRef = regexp.MustCompile(`\[([A-Za-z_][^\[\]]*)\]`)

type compileCheck struct {
	sim      *Simulator
	program  *Program
	owned    map[string]map[string]bool
	types    map[string]engine.Type
	messages []seqerr.Message
}

func (c *compileCheck) report(st *flow.Statement, format string, args ...any) {
	desc := fmt.Sprintf("'%s': %s", st.Alias(), fmt.Sprintf(format, args...))
	c.messages = append(c.messages, seqerr.Message{Description: desc})
}

// Compile checks the program and returns a simulated executable. Failed
// checks are returned as a CompilationError with one message per
// offending statement.
func (s *Simulator) Compile(ctx context.Context, p *Program) (Executable, error) {
	start := time.Now()

	c := &compileCheck{
		sim:     s,
		program: p,
		owned:   map[string]map[string]bool{},
		types:   map[string]engine.Type{},
	}
	for _, e := range p.Engines {
		c.types[e.Alias] = e.Type

		names := map[string]bool{}
		for _, r := range p.Registers[e.Alias] {
			names[r.Name] = true
		}
		c.owned[e.Alias] = names

		if n := len(p.Registers[e.Alias]); n > s.maxRegisters {
			c.messages = append(c.messages, seqerr.Message{Description: fmt.Sprintf(
				"'%s': %d registers, the engine has %d", e.Alias, n, s.maxRegisters)})
		}
	}

	if err := c.sequence(ctx, p.Root, p.Master(), false); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	if len(c.messages) > 0 {
		return nil, &seqerr.CompilationError{Messages: c.messages, Elapsed: elapsed}
	}

	log.WithFields(log.Fields{
		"program": p.Alias,
		"elapsed": elapsed,
	}).Debug("simulator compiled program")

	return newSimExecutable(p), nil
}

func (c *compileCheck) sequence(ctx context.Context, id flow.SeqID, alias string, inLane bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seq := c.program.Tree.Sequence(id)
	if _, ok := c.sim.handles[seq.Handle]; !ok {
		c.messages = append(c.messages, seqerr.Message{Description: fmt.Sprintf(
			"'%s:': sequence handle '%s' not allocated by this backend", seq.Line, seq.Handle)})
	}

	aliases := map[string]bool{}
	for _, st := range seq.Statements {
		if aliases[st.Alias()] {
			c.report(st, "instruction alias used twice in sequence '%s'", seq.Line)
		}
		aliases[st.Alias()] = true

		if inLane && st.Timing.Synchronized {
			c.report(st, "synchronized instruction in engine sequence")
		}
		if inLane && st.Inst != nil && !c.types[alias].Supports(st.Inst.Op) {
			c.report(st, "%s not available on %s engine %s", st.Inst.Op, c.types[alias], alias)
		}
		if st.Inst != nil && insts.IsAction(st.Inst.Op) && st.Inst.Params["channels"] == "" {
			c.report(st, "%s without channels", st.Inst.Op)
		}
		c.registers(st, alias)

		for _, body := range st.Body {
			if err := c.sequence(ctx, body, alias, inLane); err != nil {
				return err
			}
		}
		for _, l := range st.Lanes {
			if err := c.sequence(ctx, l.Sequence, l.Engine, true); err != nil {
				return err
			}
		}
	}

	return nil
}

// registers checks that all registers named in the instruction parameters
// exist on the engine executing the statement.
func (c *compileCheck) registers(st *flow.Statement, alias string) {
	if st.Inst == nil {
		return
	}

	for _, value := range st.Inst.Params {
		for _, m := range registerRef.FindAllStringSubmatch(value, -1) {
			owner, name := alias, m[1]
			if e, n, ok := strings.Cut(m[1], "|"); ok {
				owner, name = e, n
			}
			if owner != alias || !c.owned[owner][name] {
				c.report(st, "register '%s' not defined on %s", m[1], alias)
			}
		}
	}
}

type simExecutable struct {
	program *Program

	loaded  bool
	running bool
	closed  bool

	initial map[string]map[string]int
	values  map[string]map[string]int
}

func newSimExecutable(p *Program) *simExecutable {
	x := &simExecutable{
		program: p,
		initial: map[string]map[string]int{},
		values:  map[string]map[string]int{},
	}
	for alias, registers := range p.Registers {
		x.initial[alias] = map[string]int{}
		for _, r := range registers {
			x.initial[alias][r.Name] = r.InitialValue
		}
	}
	return x
}

func (x *simExecutable) check() error {
	if x.closed {
		return fmt.Errorf("executable %s is closed", x.program.Alias)
	}
	return nil
}

func (x *simExecutable) Load() error {
	if err := x.check(); err != nil {
		return err
	}
	x.loaded = true
	return nil
}

func (x *simExecutable) Unload() error {
	x.running = false
	x.loaded = false
	return nil
}

func (x *simExecutable) Start() error {
	if err := x.check(); err != nil {
		return err
	}
	if !x.loaded {
		return fmt.Errorf("executable %s not loaded", x.program.Alias)
	}

	x.values = map[string]map[string]int{}
	for alias, registers := range x.initial {
		x.values[alias] = map[string]int{}
		for name, v := range registers {
			x.values[alias][name] = v
		}
	}
	x.running = true

	log.WithField("program", x.program.Alias).Debug("simulator started program")
	return nil
}

// Run starts the program. The simulated program has no duration, so Run
// returns as soon as it is started.
func (x *simExecutable) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := x.Start(); err != nil {
		return err
	}
	x.running = false
	return nil
}

func (x *simExecutable) Stop() error {
	x.running = false
	return nil
}

func (x *simExecutable) IsRunning() bool {
	return x.running
}

func (x *simExecutable) SetInitialValue(engine, name string, value int) error {
	if err := x.check(); err != nil {
		return err
	}
	if x.running {
		return fmt.Errorf("cannot set initial value of [%s|%s] while running", engine, name)
	}
	registers, err := x.lookup(x.initial, engine, name)
	if err != nil {
		return err
	}
	registers[name] = value
	return nil
}

func (x *simExecutable) WriteRegister(engine, name string, value int) error {
	if err := x.check(); err != nil {
		return err
	}
	if !x.loaded {
		return fmt.Errorf("executable %s not loaded", x.program.Alias)
	}
	registers, err := x.lookup(x.current(), engine, name)
	if err != nil {
		return err
	}
	registers[name] = value
	return nil
}

func (x *simExecutable) ReadRegister(engine, name string) (int, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	registers, err := x.lookup(x.current(), engine, name)
	if err != nil {
		return 0, err
	}
	return registers[name], nil
}

// current returns the runtime values, or the initial values when the
// program has not been started.
func (x *simExecutable) current() map[string]map[string]int {
	if len(x.values) == 0 {
		return x.initial
	}
	return x.values
}

func (x *simExecutable) lookup(
	values map[string]map[string]int,
	engine, name string,
) (map[string]int, error) {
	registers, ok := values[engine]
	if !ok {
		return nil, &seqerr.LookupError{Kind: "engine", Name: engine, Scope: x.program.Alias}
	}
	if _, ok := registers[name]; !ok {
		return nil, &seqerr.LookupError{Kind: "register", Name: name, Scope: engine}
	}
	return registers, nil
}

func (x *simExecutable) Close() error {
	if x.closed {
		return nil
	}
	if err := x.Unload(); err != nil {
		return err
	}
	x.closed = true
	return nil
}
