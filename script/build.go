package script

import (
	"fmt"
	"strings"

	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/sequencer"
)

// Program is a built script.
type Program struct {
	Script    *Script
	Sequencer *sequencer.Sequencer

	// Labels maps statement labels to line ids. Labels of steps run on
	// several engines get the suffix "@<engine>".
	Labels map[string]string
}

// Build creates the system of the script and builds the main sequence.
func Build(s *Script, opts ...sequencer.Option) (*Program, error) {
	system, err := s.System()
	if err != nil {
		return nil, err
	}

	opts = append([]sequencer.Option{sequencer.WithAlias(s.Name)}, opts...)
	seq, err := sequencer.New(system, opts...)
	if err != nil {
		return nil, err
	}

	for _, r := range s.SyncRegisters {
		if _, err := seq.AddSyncRegister(r.Name, r.Initial); err != nil {
			return nil, err
		}
	}
	for _, r := range s.ModuleRegisters {
		t, err := engine.ParseType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", r.Name, err)
		}
		f := engine.Filter{Aliases: r.Engines, Type: t}
		if _, err := seq.AddModuleRegister(r.Name, r.Initial, f); err != nil {
			return nil, err
		}
	}

	p := &Program{Script: s, Sequencer: seq, Labels: map[string]string{}}
	b := &runner{p: p, seq: seq, system: system}

	main, err := seq.Main().Main()
	if err != nil {
		return nil, err
	}
	if err := main.Do(func() error {
		return b.syncSteps(s.Main)
	}); err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name, err)
	}

	return p, nil
}

type runner struct {
	p      *Program
	seq    *sequencer.Sequencer
	system *engine.System
}

func (r *runner) label(name, suffix string, st *flow.Statement) error {
	if name == "" || st == nil {
		return nil
	}
	if suffix != "" {
		name += "@" + suffix
	}
	if _, dup := r.p.Labels[name]; dup {
		return fmt.Errorf("label %q used twice", name)
	}
	r.p.Labels[name] = st.Line
	return nil
}

// action returns the name of the action of a step.
func (s *StepSpec) action() (string, error) {
	var set []string
	add := func(name string, ok bool) {
		if ok {
			set = append(set, name)
		}
	}

	add("wait", s.Wait != nil)
	add("wait_register", s.WaitRegister != "")
	add("wait_for", s.WaitFor != nil)
	add("while", s.While != nil)
	add("repeat", s.Repeat != nil)
	add("synced", s.Synced != nil)
	add("set", s.Set != nil)
	add("increment", s.Increment != "")
	add("start", s.Start != nil)
	add("trigger", s.Trigger != nil)
	add("stop", s.Stop != nil)
	add("reset_phase", s.ResetPhase != nil)
	add("queue_flush", s.QueueFlush != nil)
	add("queue_waveform", s.QueueWaveform != nil)
	add("amplitude", s.Amplitude != nil)
	add("offset", s.Offset != nil)
	add("frequency", s.Frequency != nil)
	add("phase", s.Phase != nil)
	add("daq_config", s.DaqConfig != nil)
	add("prescaler", s.Prescaler != nil)
	add("fpga_write", s.FpgaWrite != nil)
	add("fpga_read", s.FpgaRead != nil)

	switch len(set) {
	case 0:
		return "", fmt.Errorf("step without action")
	case 1:
		return set[0], nil
	}
	return "", fmt.Errorf("step with several actions: %s", strings.Join(set, ", "))
}

func (r *runner) syncSteps(steps []StepSpec) error {
	sync := r.seq.Main()

	for i := range steps {
		step := &steps[i]
		action, err := step.action()
		if err != nil {
			return err
		}

		var st *flow.Statement
		switch action {
		case "while":
			c, err := r.condition(step.While.Condition, sync.Register, r.system.Master())
			if err != nil {
				return err
			}
			loop, err := sync.While(c)
			if err != nil {
				return err
			}
			st = loop.Statement()
			err = loop.Do(func() error { return r.syncSteps(step.While.Steps) })
			if err != nil {
				return err
			}

		case "repeat":
			n, err := operand(step.Repeat.Count, sync.Register)
			if err != nil {
				return err
			}
			loop, err := sync.Repeat(n)
			if err != nil {
				return err
			}
			st = loop.Statement()
			err = loop.Do(func() error { return r.syncSteps(step.Repeat.Steps) })
			if err != nil {
				return err
			}

		case "synced":
			if st, err = r.synced(*step.Synced); err != nil {
				return err
			}

		case "set":
			value, err := r.value(step.Set, sync.Register)
			if err != nil {
				return err
			}
			if st, err = sync.Assign(step.Set.Register, value); err != nil {
				return err
			}

		default:
			return fmt.Errorf("step %s not allowed in the sync sequence", action)
		}

		if err := r.label(step.Label, "", st); err != nil {
			return err
		}
	}

	return nil
}

type laneGroup struct {
	modules []*sequencer.ModuleBuilder
	steps   []StepSpec
}

// synced runs the groups of a synced step in a synced block of the
// engines they select.
func (r *runner) synced(spec SyncedSpec) (*flow.Statement, error) {
	var groups []laneGroup
	selected := map[string]bool{}
	for _, sg := range spec {
		modules, err := r.selectModules(sg.Engines)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", sg.Line, err)
		}
		for _, m := range modules {
			selected[m.Engine().Alias] = true
		}
		groups = append(groups, laneGroup{modules: modules, steps: sg.Steps})
	}

	var aliases []string
	for _, e := range r.system.Engines(engine.Filter{}) {
		if selected[e.Alias] {
			aliases = append(aliases, e.Alias)
		}
	}
	if len(aliases) == 0 {
		return nil, fmt.Errorf("synced block without engines")
	}

	block, err := r.seq.Main().SyncedModules(aliases...)
	if err != nil {
		return nil, err
	}
	err = block.Do(func() error {
		for _, g := range groups {
			suffix := len(g.modules) > 1
			for _, m := range g.modules {
				if err := r.moduleSteps(m, g.steps, suffix); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return block.Statement(), err
}

// selectModules returns the module builders selected by an engine alias, a
// module type or "all".
func (r *runner) selectModules(key string) ([]*sequencer.ModuleBuilder, error) {
	if key == "all" {
		return r.seq.ModuleBuilders(engine.Filter{}), nil
	}
	if _, err := r.system.Engine(key); err == nil {
		m, err := r.seq.ModuleBuilder(key)
		if err != nil {
			return nil, err
		}
		return []*sequencer.ModuleBuilder{m}, nil
	}

	t, err := engine.ParseType(key)
	if err != nil || t == engine.TypeAny {
		return nil, fmt.Errorf("unknown engine or type %q", key)
	}
	modules := r.seq.ModuleBuilders(engine.Filter{Type: t})
	if len(modules) == 0 {
		return nil, fmt.Errorf("no %s engines", t)
	}
	return modules, nil
}
