package script

import (
	"fmt"

	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/sequencer"
)

type registerLookup func(name string) (*expr.Register, error)

// operand converts a number or a register name.
func operand(v any, lookup registerLookup) (expr.Operand, error) {
	switch v := v.(type) {
	case int:
		return expr.Const(v), nil
	case string:
		r, err := lookup(v)
		if err != nil {
			return nil, err
		}
		return r, nil
	case nil:
		return nil, fmt.Errorf("missing operand")
	}
	return nil, fmt.Errorf("operand must be a number or a register name, got %v", v)
}

func (r *runner) condition(c CondSpec, lookup registerLookup, owner *engine.Engine) (expr.Condition, error) {
	switch {
	case len(c.And) > 0 || len(c.Or) > 0:
		specs, join := c.And, expr.LogicalAnd
		if len(c.Or) > 0 {
			specs, join = c.Or, expr.LogicalOr
		}
		terms := make([]expr.Condition, 0, len(specs))
		for _, spec := range specs {
			t, err := r.condition(spec, lookup, owner)
			if err != nil {
				return expr.Condition{}, err
			}
			terms = append(terms, t)
		}
		return join(terms...), nil

	case c.Not != nil:
		t, err := r.condition(*c.Not, lookup, owner)
		if err != nil {
			return expr.Condition{}, err
		}
		return expr.Negate(t), nil

	case c.Event != "":
		e := owner
		if c.Engine != "" {
			var err error
			if e, err = r.system.Engine(c.Engine); err != nil {
				return expr.Condition{}, err
			}
		}
		ev, err := e.Event(c.Event)
		if err != nil {
			return expr.Condition{}, err
		}
		return expr.OnEvent(ev), nil
	}

	lhs, err := lookup(c.Register)
	if err != nil {
		return expr.Condition{}, err
	}
	rhs, err := operand(c.Value, lookup)
	if err != nil {
		return expr.Condition{}, err
	}

	compare, ok := comparisons[c.Op]
	if !ok {
		return expr.Condition{}, fmt.Errorf("unknown comparison %q", c.Op)
	}
	return compare(lhs, rhs), nil
}

var comparisons = map[string]func(lhs, rhs expr.Operand) expr.Condition{
	expr.OpEqual:          expr.Equal,
	expr.OpNotEqual:       expr.NotEqual,
	expr.OpGreater:        expr.Greater,
	expr.OpGreaterOrEqual: expr.GreaterOrEqual,
	expr.OpLess:           expr.Less,
	expr.OpLessOrEqual:    expr.LessOrEqual,
}

// value converts the right-hand side of a set step to a value accepted by
// Assign.
func (r *runner) value(s *SetSpec, lookup registerLookup) (any, error) {
	binary := func(operands []any, build func(dest *expr.Register, lhs, rhs expr.Operand) expr.Expression) (any, error) {
		if len(operands) != 2 {
			return nil, fmt.Errorf("set %s: expression needs two operands", s.Register)
		}
		lhs, err := operand(operands[0], lookup)
		if err != nil {
			return nil, err
		}
		rhs, err := operand(operands[1], lookup)
		if err != nil {
			return nil, err
		}
		return build(nil, lhs, rhs), nil
	}

	switch {
	case len(s.Add) > 0:
		return binary(s.Add, expr.Add)
	case len(s.Subtract) > 0:
		return binary(s.Subtract, expr.Subtract)
	case s.Fpga != "":
		return &engine.FpgaSymbol{Name: s.Fpga}, nil
	}
	return operand(s.Value, lookup)
}

func triggerMode(s string) (sequencer.TriggerMode, error) {
	if s == "" {
		return sequencer.TriggerAuto, nil
	}
	return sequencer.ParseTriggerMode(s)
}

func channels(list *[]int) []int {
	if list == nil {
		return nil
	}
	return *list
}

func (r *runner) moduleSteps(m *sequencer.ModuleBuilder, steps []StepSpec, suffix bool) error {
	for i := range steps {
		step := &steps[i]
		st, err := r.moduleStep(m, step, suffix)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Engine().Alias, err)
		}

		engineSuffix := ""
		if suffix {
			engineSuffix = m.Engine().Alias
		}
		if err := r.label(step.Label, engineSuffix, st); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) moduleStep(m *sequencer.ModuleBuilder, step *StepSpec, suffix bool) (*flow.Statement, error) {
	action, err := step.action()
	if err != nil {
		return nil, err
	}

	var opts []sequencer.StatementOption
	if step.StartDelay != nil {
		opts = append(opts, sequencer.WithStartDelay(*step.StartDelay))
	}

	switch action {
	case "wait":
		return m.Wait(*step.Wait)

	case "wait_register":
		reg, err := m.Register(step.WaitRegister)
		if err != nil {
			return nil, err
		}
		return m.WaitRegister(reg)

	case "wait_for":
		c, err := r.condition(*step.WaitFor, m.Register, m.Engine())
		if err != nil {
			return nil, err
		}
		return m.WaitFor(c)

	case "while":
		c, err := r.condition(step.While.Condition, m.Register, m.Engine())
		if err != nil {
			return nil, err
		}
		loop, err := m.While(c)
		if err != nil {
			return nil, err
		}
		return loop.Statement(), loop.Do(func() error {
			return r.moduleSteps(m, step.While.Steps, suffix)
		})

	case "repeat":
		n, err := operand(step.Repeat.Count, m.Register)
		if err != nil {
			return nil, err
		}
		loop, err := m.Repeat(n)
		if err != nil {
			return nil, err
		}
		return loop.Statement(), loop.Do(func() error {
			return r.moduleSteps(m, step.Repeat.Steps, suffix)
		})

	case "set":
		value, err := r.value(step.Set, m.Register)
		if err != nil {
			return nil, err
		}
		return m.Assign(step.Set.Register, value)

	case "increment":
		reg, err := m.Register(step.Increment)
		if err != nil {
			return nil, err
		}
		return m.IncrementRegister(reg, 1, opts...)

	case "start":
		return m.Start(channels(step.Start), opts...)
	case "trigger":
		return m.Trigger(channels(step.Trigger), opts...)
	case "stop":
		return m.Stop(channels(step.Stop), opts...)
	case "reset_phase":
		return m.ResetPhase(channels(step.ResetPhase), opts...)
	case "queue_flush":
		return m.QueueFlush(channels(step.QueueFlush), opts...)

	case "queue_waveform":
		w := step.QueueWaveform
		mode, err := triggerMode(w.TriggerMode)
		if err != nil {
			return nil, err
		}
		return m.QueueWaveform(w.Channel, sequencer.Waveform{
			ID:          w.Waveform,
			Cycles:      w.Cycles,
			StartDelay:  w.StartDelay,
			Prescaler:   w.Prescaler,
			TriggerMode: mode,
		}, opts...)

	case "amplitude":
		return m.SetAmplitude(step.Amplitude.Channel, step.Amplitude.Value, opts...)
	case "offset":
		return m.SetOffset(step.Offset.Channel, step.Offset.Value, opts...)
	case "frequency":
		return m.SetFrequency(step.Frequency.Channel, step.Frequency.Value, opts...)
	case "phase":
		return m.SetPhase(step.Phase.Channel, step.Phase.Value, opts...)

	case "daq_config":
		a := step.DaqConfig
		mode, err := triggerMode(a.TriggerMode)
		if err != nil {
			return nil, err
		}
		return m.DaqConfig(a.Channel, sequencer.Acquisition{
			PointsPerCycle: a.PointsPerCycle,
			Cycles:         a.Cycles,
			TriggerDelay:   a.TriggerDelay,
			TriggerMode:    mode,
		}, opts...)

	case "prescaler":
		return m.PrescalerConfig(step.Prescaler.Channel, step.Prescaler.Prescaler, opts...)

	case "fpga_write":
		return r.fpgaWrite(m, step.FpgaWrite, opts)
	case "fpga_read":
		return r.fpgaRead(m, step.FpgaRead, opts)
	}

	return nil, fmt.Errorf("step %s not allowed in an engine sequence", action)
}

func (r *runner) fpgaWrite(
	m *sequencer.ModuleBuilder,
	s *FpgaWriteSpec,
	opts []sequencer.StatementOption,
) (*flow.Statement, error) {
	value, err := operand(s.Value, m.Register)
	if err != nil {
		return nil, err
	}
	if s.Index == nil {
		return m.WriteFpga(s.Name, value, opts...)
	}
	index, err := operand(s.Index, m.Register)
	if err != nil {
		return nil, err
	}
	return m.WriteFpgaIndexed(s.Name, index, value, opts...)
}

func (r *runner) fpgaRead(
	m *sequencer.ModuleBuilder,
	s *FpgaReadSpec,
	opts []sequencer.StatementOption,
) (*flow.Statement, error) {
	dest, err := m.Register(s.Register)
	if err != nil {
		return nil, err
	}
	if s.Index == nil {
		return m.ReadFpga(dest, s.Name, opts...)
	}
	index, err := operand(s.Index, m.Register)
	if err != nil {
		return nil, err
	}
	return m.ReadFpgaIndexed(dest, s.Name, index, opts...)
}
