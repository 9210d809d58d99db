// Package sequencer builds timed HVI programs for a system of engines.
//
// A Sequencer holds the sync builder that drives the main sequence and
// one module builder per engine. Module builders can only add statements
// inside a synced block of the sync builder:
//
//	seq, _ := sequencer.New(system)
//	sync := seq.Main()
//	main, _ := sync.Main()
//	err := main.Do(func() error {
//		block, err := sync.SyncedModules()
//		if err != nil {
//			return err
//		}
//		return block.Do(func() error {
//			for _, m := range seq.ModuleBuilders(engine.Filter{Type: engine.TypeAWG}) {
//				if _, err := m.Trigger(nil); err != nil {
//					return err
//				}
//			}
//			return nil
//		})
//	})
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/hviseq/backend"
	"github.com/sarchlab/hviseq/builder"
	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/timecalc"
	"github.com/sarchlab/hviseq/timing/hazard"
	"github.com/sarchlab/hviseq/timing/latency"
)

// Sequencer builds the program of a system.
type Sequencer struct {
	alias   string
	system  *engine.System
	table   *latency.Table
	backend backend.Backend

	tree *flow.Tree
	root flow.SeqID

	namespaces map[string]*expr.Namespace
	modules    []*ModuleBuilder
	sync       *SyncBuilder

	// errors holds the last compilation messages by line id, or by "#k"
	// for messages without line.
	errors    map[string]seqerr.Message
	errorKeys []string

	calc   *timecalc.Calc
	hazard *hazard.Unit
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTimingTable sets the timing table. The default table uses the
// default timing configuration.
func WithTimingTable(t *latency.Table) Option {
	return func(s *Sequencer) {
		s.table = t
	}
}

// WithBackend sets the backend. The default backend is a simulator.
func WithBackend(b backend.Backend) Option {
	return func(s *Sequencer) {
		s.backend = b
	}
}

// WithAlias sets the name of the program.
func WithAlias(alias string) Option {
	return func(s *Sequencer) {
		s.alias = alias
	}
}

// New creates a sequencer for all engines of the system.
func New(system *engine.System, opts ...Option) (*Sequencer, error) {
	engines := system.Engines(engine.Filter{})
	if len(engines) == 0 {
		return nil, fmt.Errorf("system %s has no engines", system.Alias)
	}

	s := &Sequencer{
		alias:      "Sequencer",
		system:     system,
		namespaces: map[string]*expr.Namespace{},
		modules:    make([]*ModuleBuilder, 0, len(engines)),
		errors:     map[string]seqerr.Message{},
		hazard:     hazard.NewUnit(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = latency.NewTable()
	}
	if s.backend == nil {
		s.backend = backend.NewSimulator()
	}

	log.WithField("alias", s.alias).Info("init HVI sequence")

	s.tree = flow.NewTree()
	s.calc = timecalc.New(s.tree)
	root := s.tree.NewSequence(flow.NoSequence, "", s.table.MainEntryLatencyNs(),
		s.backend.NewHandle(builder.HandleMain, ""))
	s.root = root.ID

	for i, e := range engines {
		s.namespaces[e.Alias] = expr.NewNamespace(e.Alias)
		s.modules = append(s.modules, newModuleBuilder(s, e, string(rune('A'+i))))
	}
	s.sync = newSyncBuilder(s)

	log.WithField("engines", len(engines)).Info("sequence initialized")

	return s, nil
}

// Alias returns the name of the program.
func (s *Sequencer) Alias() string {
	return s.alias
}

// System returns the system the program runs on.
func (s *Sequencer) System() *engine.System {
	return s.system
}

// Table returns the timing table.
func (s *Sequencer) Table() *latency.Table {
	return s.table
}

// Tree returns the statement tree.
func (s *Sequencer) Tree() *flow.Tree {
	return s.tree
}

// Root returns the main sequence.
func (s *Sequencer) Root() *flow.Sequence {
	return s.tree.Sequence(s.root)
}

// Main returns the builder of the synchronized main sequence.
func (s *Sequencer) Main() *SyncBuilder {
	return s.sync
}

// ModuleBuilders returns the builders of the engines selected by the
// filter, in system order.
func (s *Sequencer) ModuleBuilders(f engine.Filter) []*ModuleBuilder {
	var builders []*ModuleBuilder
	for _, e := range s.system.Engines(f) {
		if m := s.module(e.Alias); m != nil {
			builders = append(builders, m)
		}
	}
	return builders
}

// ModuleBuilder returns the builder of one engine.
func (s *Sequencer) ModuleBuilder(alias string) (*ModuleBuilder, error) {
	if m := s.module(alias); m != nil {
		return m, nil
	}
	return nil, &seqerr.LookupError{Kind: "engine", Name: alias, Scope: s.alias}
}

func (s *Sequencer) module(alias string) *ModuleBuilder {
	for _, m := range s.modules {
		if m.engine.Alias == alias {
			return m
		}
	}
	return nil
}

func (s *Sequencer) master() *ModuleBuilder {
	return s.modules[0]
}

// AddSyncRegister adds a register for use in the sync sequence. Sync
// registers are stored on the master engine.
func (s *Sequencer) AddSyncRegister(name string, initialValue int) (*expr.Register, error) {
	return s.addRegister(s.master().engine.Alias, name, initialValue)
}

// AddModuleRegister adds a register with the same name to all engines
// selected by the filter.
func (s *Sequencer) AddModuleRegister(
	name string,
	initialValue int,
	f engine.Filter,
) (*expr.ModuleRegister, error) {
	engines := s.system.Engines(f)
	if len(engines) == 0 {
		return nil, fmt.Errorf("module register %s: no engines selected", name)
	}

	registers := make([]*expr.Register, 0, len(engines))
	for _, e := range engines {
		r, err := s.addRegister(e.Alias, name, initialValue)
		if err != nil {
			return nil, err
		}
		registers = append(registers, r)
	}

	return expr.NewModuleRegister(registers), nil
}

func (s *Sequencer) addRegister(engineAlias, name string, initialValue int) (*expr.Register, error) {
	ns, ok := s.namespaces[engineAlias]
	if !ok {
		return nil, &seqerr.LookupError{Kind: "engine", Name: engineAlias, Scope: s.alias}
	}

	r, err := ns.Add(name, initialValue)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"register": r.FullName(),
		"initial":  initialValue,
	}).Debug("added register")

	return r, nil
}

// Registers returns the registers of an engine. An empty alias selects the
// master engine, which holds the sync registers.
func (s *Sequencer) Registers(engineAlias string) ([]*expr.Register, error) {
	if engineAlias == "" {
		engineAlias = s.master().engine.Alias
	}
	ns, ok := s.namespaces[engineAlias]
	if !ok {
		return nil, &seqerr.LookupError{Kind: "engine", Name: engineAlias, Scope: s.alias}
	}
	return ns.Registers(), nil
}

// TimeBetween returns the time between the start of two statements.
func (s *Sequencer) TimeBetween(start, end *flow.Statement) (flow.Duration, error) {
	return s.calc.TimeBetween(start, end)
}

// TimeBetweenLines returns the time between two statements given by line.
func (s *Sequencer) TimeBetweenLines(start, end string) (flow.Duration, error) {
	return s.calc.TimeBetweenLines(start, end)
}

// Hazards returns the register hazards of the program.
func (s *Sequencer) Hazards() []hazard.Hazard {
	return s.hazard.Scan(s.tree, s.root)
}

// Program returns the program as handed to the backend.
func (s *Sequencer) Program() *backend.Program {
	registers := make(map[string][]*expr.Register, len(s.namespaces))
	for alias, ns := range s.namespaces {
		registers[alias] = ns.Registers()
	}

	return &backend.Program{
		Alias:     s.alias,
		Tree:      s.tree,
		Root:      s.root,
		Engines:   s.system.Engines(engine.Filter{}),
		Registers: registers,
	}
}

// Compile compiles the program with the backend. When the backend reports
// errors, they are attached to the statements for Describe and the
// annotated program is logged.
func (s *Sequencer) Compile(ctx context.Context) (*Exec, error) {
	if s.sync.b.State() != builder.StateInactive || s.sync.b.Depth() != 0 {
		return nil, &seqerr.SyntaxError{Msg: "main sequence is still open"}
	}

	log.WithField("alias", s.alias).Info("compiling HVI script")
	start := time.Now()

	x, err := s.backend.Compile(ctx, s.Program())
	if err != nil {
		var ce *seqerr.CompilationError
		if errors.As(err, &ce) {
			s.setErrors(ce.Messages)
			log.Errorf("compilation failed (%6.3f s)", ce.Elapsed.Seconds())
			for _, m := range ce.Messages {
				log.Error(m.Description)
			}
			log.Error("compilation failed:\n" + s.Describe(DefaultDescribeOptions()))
		}
		return nil, fmt.Errorf("compile %s: %w", s.alias, err)
	}

	s.setErrors(nil)
	log.Infof("compiled in %6.3f s", time.Since(start).Seconds())

	return newExec(s, x), nil
}

var errorLinePattern = regexp.MustCompile(`'([0-9]+(?:[A-Z][0-9]+)?):`)

// errorLine returns the line of the latest statement named in a compiler
// message, or "" if it names none.
func (s *Sequencer) errorLine(description string) string {
	line := ""
	var order uint64
	for _, m := range errorLinePattern.FindAllStringSubmatch(description, -1) {
		st, ok := s.tree.Lookup(m[1])
		if !ok {
			continue
		}
		if line == "" || st.Order() > order {
			line, order = st.Line, st.Order()
		}
	}
	return line
}

func (s *Sequencer) setErrors(messages []seqerr.Message) {
	s.errors = map[string]seqerr.Message{}
	s.errorKeys = []string{}
	for k, m := range messages {
		key := s.errorLine(m.Description)
		if key == "" {
			key = fmt.Sprintf("#%d", k)
		}
		if _, dup := s.errors[key]; !dup {
			s.errorKeys = append(s.errorKeys, key)
		}
		s.errors[key] = m
	}
}

// Errors returns the messages of the last failed compilation by line id.
// Messages without a line are keyed "#k" with k the message index.
func (s *Sequencer) Errors() map[string]seqerr.Message {
	return maps.Clone(s.errors)
}

// Close closes all builders. Further statements are rejected.
func (s *Sequencer) Close() {
	s.sync.b.Close()
	for _, m := range s.modules {
		m.b.Close()
	}
}
