package sequencer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/insts"
)

// TriggerMode selects how a queued waveform or acquisition is started.
type TriggerMode int

// Trigger modes.
const (
	TriggerAuto TriggerMode = iota
	TriggerSoftware
	TriggerSoftwareCycle
	TriggerExternal
	TriggerExternalCycle
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerAuto:
		return "auto"
	case TriggerSoftware:
		return "sw_hvi"
	case TriggerSoftwareCycle:
		return "sw_hvi_per_cycle"
	case TriggerExternal:
		return "external"
	case TriggerExternalCycle:
		return "external_per_cycle"
	}
	return "trigger(" + strconv.Itoa(int(m)) + ")"
}

// ParseTriggerMode returns the trigger mode with the given name.
func ParseTriggerMode(s string) (TriggerMode, error) {
	for m := TriggerAuto; m <= TriggerExternalCycle; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return TriggerAuto, fmt.Errorf("unknown trigger mode %q", s)
}

func (m *ModuleBuilder) requireType(op insts.Op) error {
	if !m.engine.Type.Supports(op) {
		return fmt.Errorf("%s: %s needs a %s engine, not %s",
			m.engine.Alias, op, engine.RequiredType(op), m.engine.Type)
	}
	return nil
}

// channelList returns the channels with all channels for an empty list.
func (m *ModuleBuilder) channelList(channels []int) ([]int, error) {
	if len(channels) == 0 {
		channels = make([]int, 0, engine.NumChannels)
		for ch := 1; ch <= engine.NumChannels; ch++ {
			channels = append(channels, ch)
		}
	}
	if err := m.engine.CheckChannels(channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func joinChannels(channels []int, sep string) string {
	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = strconv.Itoa(ch)
	}
	return strings.Join(parts, sep)
}

func (m *ModuleBuilder) action(
	awgOp, daqOp insts.Op,
	channels []int,
	opts []StatementOption,
) (*flow.Statement, error) {
	op := awgOp
	if m.engine.Type == engine.TypeDigitizer {
		op = daqOp
	}

	channels, err := m.channelList(channels)
	if err != nil {
		return nil, err
	}

	inst := insts.New(op).With("channels", joinChannels(channels, ","))
	text := fmt.Sprintf("%s [%s]", op, joinChannels(channels, ", "))

	return m.addInstruction(text, inst, opts)
}

// Start starts the channels of the engine. An empty list selects all
// channels.
func (m *ModuleBuilder) Start(channels []int, opts ...StatementOption) (*flow.Statement, error) {
	return m.action(insts.OpAwgStart, insts.OpDaqStart, channels, opts)
}

// Trigger triggers the channels of the engine.
func (m *ModuleBuilder) Trigger(channels []int, opts ...StatementOption) (*flow.Statement, error) {
	return m.action(insts.OpAwgTrigger, insts.OpDaqTrigger, channels, opts)
}

// Stop stops the channels of the engine.
func (m *ModuleBuilder) Stop(channels []int, opts ...StatementOption) (*flow.Statement, error) {
	return m.action(insts.OpAwgStop, insts.OpDaqStop, channels, opts)
}

func (m *ModuleBuilder) awgAction(op insts.Op, channels []int, opts []StatementOption) (*flow.Statement, error) {
	if err := m.requireType(op); err != nil {
		return nil, err
	}
	return m.action(op, op, channels, opts)
}

// ResetPhase resets the phase of the AWG channels.
func (m *ModuleBuilder) ResetPhase(channels []int, opts ...StatementOption) (*flow.Statement, error) {
	return m.awgAction(insts.OpAwgResetPhase, channels, opts)
}

// QueueFlush flushes the waveform queues of the AWG channels.
func (m *ModuleBuilder) QueueFlush(channels []int, opts ...StatementOption) (*flow.Statement, error) {
	return m.awgAction(insts.OpAwgQueueFlush, channels, opts)
}

// Waveform describes a waveform to queue on an AWG channel.
type Waveform struct {
	// ID is the number of the waveform loaded on the module.
	ID int

	// Cycles is the number of repetitions. Zero repeats until stopped.
	Cycles int

	// StartDelay is the delay after the trigger in units of 10 ns.
	StartDelay int

	Prescaler   int
	TriggerMode TriggerMode
}

// QueueWaveform queues a waveform on an AWG channel.
func (m *ModuleBuilder) QueueWaveform(
	channel int,
	w Waveform,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if err := m.requireType(insts.OpQueueWaveform); err != nil {
		return nil, err
	}
	if err := m.engine.CheckChannels([]int{channel}); err != nil {
		return nil, err
	}
	if w.Cycles < 0 || w.StartDelay < 0 || w.Prescaler < 0 {
		return nil, fmt.Errorf("%s: queue_waveform: negative parameter in %+v", m.engine.Alias, w)
	}

	inst := insts.New(insts.OpQueueWaveform).
		With("channel", channel).
		With("waveform", w.ID).
		With("cycles", w.Cycles).
		With("start_delay", w.StartDelay).
		With("prescaler", w.Prescaler).
		With("trigger_mode", w.TriggerMode)
	text := fmt.Sprintf("queue_waveform ch%d wave %d cycles %d", channel, w.ID, w.Cycles)

	return m.addInstruction(text, inst, opts)
}

func (m *ModuleBuilder) channelSetting(
	op insts.Op,
	param string,
	channel int,
	value any,
	opts []StatementOption,
) (*flow.Statement, error) {
	if err := m.requireType(op); err != nil {
		return nil, err
	}
	if err := m.engine.CheckChannels([]int{channel}); err != nil {
		return nil, err
	}

	inst := insts.New(op).With("channel", channel).With(param, value)
	return m.addInstruction(fmt.Sprintf("%s ch%d %v", op, channel, value), inst, opts)
}

// SetAmplitude sets the amplitude of an AWG channel in V.
func (m *ModuleBuilder) SetAmplitude(channel int, v float64, opts ...StatementOption) (*flow.Statement, error) {
	return m.channelSetting(insts.OpSetAmplitude, "value", channel, v, opts)
}

// SetOffset sets the offset of an AWG channel in V.
func (m *ModuleBuilder) SetOffset(channel int, v float64, opts ...StatementOption) (*flow.Statement, error) {
	return m.channelSetting(insts.OpSetOffset, "value", channel, v, opts)
}

// SetFrequency sets the frequency of the function generator in Hz.
func (m *ModuleBuilder) SetFrequency(channel int, hz float64, opts ...StatementOption) (*flow.Statement, error) {
	return m.channelSetting(insts.OpSetFrequency, "value", channel, hz, opts)
}

// SetPhase sets the phase of the function generator in degrees.
func (m *ModuleBuilder) SetPhase(channel int, degrees float64, opts ...StatementOption) (*flow.Statement, error) {
	return m.channelSetting(insts.OpSetPhase, "value", channel, degrees, opts)
}

// SetWaveshape sets the waveshape of an AWG channel, e.g. "AWG", "SIN".
func (m *ModuleBuilder) SetWaveshape(channel int, shape string, opts ...StatementOption) (*flow.Statement, error) {
	return m.channelSetting(insts.OpSetWaveshape, "value", channel, shape, opts)
}

// ModulationAngleConfig sets the angle modulation of an AWG channel.
func (m *ModuleBuilder) ModulationAngleConfig(
	channel int,
	modulationType string,
	deviationGain float64,
	opts ...StatementOption,
) (*flow.Statement, error) {
	st, err := m.channelSetting(insts.OpModulationAngleConfig, "modulation_type",
		channel, modulationType, opts)
	if err != nil {
		return nil, err
	}
	st.Inst.With("deviation_gain", deviationGain)
	return st, nil
}

// ModulationAmplitudeConfig sets the amplitude modulation of an AWG
// channel.
func (m *ModuleBuilder) ModulationAmplitudeConfig(
	channel int,
	modulationType string,
	deviationGain float64,
	opts ...StatementOption,
) (*flow.Statement, error) {
	st, err := m.channelSetting(insts.OpModulationAmplitudeConfig, "modulation_type",
		channel, modulationType, opts)
	if err != nil {
		return nil, err
	}
	st.Inst.With("deviation_gain", deviationGain)
	return st, nil
}

// Acquisition describes a digitizer acquisition.
type Acquisition struct {
	PointsPerCycle int
	Cycles         int

	// TriggerDelay is the delay after the trigger in samples.
	TriggerDelay int
	TriggerMode  TriggerMode
}

// DaqConfig configures the acquisition of a digitizer channel.
func (m *ModuleBuilder) DaqConfig(
	channel int,
	a Acquisition,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if err := m.daqChannel(insts.OpDaqConfig, channel); err != nil {
		return nil, err
	}
	if a.PointsPerCycle <= 0 {
		return nil, fmt.Errorf("%s: daq_config: points per cycle must be positive", m.engine.Alias)
	}

	inst := insts.New(insts.OpDaqConfig).
		With("channel", channel).
		With("points_per_cycle", a.PointsPerCycle).
		With("cycles", a.Cycles).
		With("trigger_delay", a.TriggerDelay).
		With("trigger_mode", a.TriggerMode)
	text := fmt.Sprintf("daq_config ch%d %d points x %d", channel, a.PointsPerCycle, a.Cycles)

	return m.addInstruction(text, inst, opts)
}

func (m *ModuleBuilder) daqChannel(op insts.Op, channel int) error {
	if err := m.requireType(op); err != nil {
		return err
	}
	return m.engine.CheckChannels([]int{channel})
}

// PrescalerConfig sets the prescaler of a digitizer channel.
func (m *ModuleBuilder) PrescalerConfig(channel, prescaler int, opts ...StatementOption) (*flow.Statement, error) {
	if err := m.daqChannel(insts.OpPrescalerConfig, channel); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpPrescalerConfig).
		With("channel", channel).
		With("prescaler", prescaler)
	return m.addInstruction(fmt.Sprintf("prescaler ch%d %d", channel, prescaler), inst, opts)
}

// ChannelTriggerConfig selects the trigger source of a digitizer channel.
func (m *ModuleBuilder) ChannelTriggerConfig(
	channel int,
	source string,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if err := m.daqChannel(insts.OpChannelTriggerConfig, channel); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpChannelTriggerConfig).
		With("channel", channel).
		With("source", source)
	return m.addInstruction(fmt.Sprintf("trigger_config ch%d %s", channel, source), inst, opts)
}

// DaqAnalogTriggerConfig sets the analog trigger of a digitizer channel.
func (m *ModuleBuilder) DaqAnalogTriggerConfig(
	channel int,
	threshold float64,
	risingEdge bool,
	opts ...StatementOption,
) (*flow.Statement, error) {
	if err := m.daqChannel(insts.OpDaqAnalogTriggerConfig, channel); err != nil {
		return nil, err
	}

	edge := "falling"
	if risingEdge {
		edge = "rising"
	}
	inst := insts.New(insts.OpDaqAnalogTriggerConfig).
		With("channel", channel).
		With("threshold", threshold).
		With("edge", edge)
	text := fmt.Sprintf("analog_trigger ch%d %v %s", channel, threshold, edge)

	return m.addInstruction(text, inst, opts)
}

func fpgaRegisterName(name string) string {
	return "fpga:" + name
}

// WriteFpga writes a value to an FPGA register of the engine.
func (m *ModuleBuilder) WriteFpga(name string, value expr.Operand, opts ...StatementOption) (*flow.Statement, error) {
	sym, err := m.engine.FpgaRegister(name)
	if err != nil {
		return nil, err
	}
	if err := m.ns.Check(value); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpFpgaRegisterWrite).
		With("fpga_register", sym.Name).
		With("value", value)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{fpgaRegisterName(sym.Name)}, registerNames(value))

	return m.add(fmt.Sprintf("%s = %s", fpgaRegisterName(sym.Name), value), timing, inst, opts)
}

// ReadFpga reads an FPGA register of the engine into a register.
func (m *ModuleBuilder) ReadFpga(dest *expr.Register, name string, opts ...StatementOption) (*flow.Statement, error) {
	sym, err := m.engine.FpgaRegister(name)
	if err != nil {
		return nil, err
	}
	if err := m.ns.Check(dest); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpFpgaRegisterRead).
		With("fpga_register", sym.Name).
		With("destination", dest)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{dest.FullName()}, []string{fpgaRegisterName(sym.Name)})

	return m.add(fmt.Sprintf("%s = %s", dest, fpgaRegisterName(sym.Name)), timing, inst, opts)
}

func (m *ModuleBuilder) memoryMap(name string, index expr.Operand) (*engine.FpgaSymbol, error) {
	sym, err := m.engine.FpgaMemoryMap(name)
	if err != nil {
		return nil, err
	}
	if err := m.ns.Check(index); err != nil {
		return nil, err
	}
	if c, ok := index.(expr.Constant); ok {
		if c < 0 || (sym.Size > 0 && int(c) >= sym.Size) {
			return nil, fmt.Errorf("%s: index %d out of range of memory map %s[%d]",
				m.engine.Alias, int(c), name, sym.Size)
		}
	}
	return sym, nil
}

func fpgaElementName(sym *engine.FpgaSymbol, index expr.Operand) string {
	return fmt.Sprintf("fpga:%s(%s)", sym.Name, index)
}

// WriteFpgaIndexed writes a value to an element of an FPGA memory map.
func (m *ModuleBuilder) WriteFpgaIndexed(
	name string,
	index, value expr.Operand,
	opts ...StatementOption,
) (*flow.Statement, error) {
	sym, err := m.memoryMap(name, index)
	if err != nil {
		return nil, err
	}
	if err := m.ns.Check(value); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpFpgaArrayWrite).
		With("fpga_memory_map", sym.Name).
		With("index", index).
		With("value", value)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{fpgaRegisterName(sym.Name)}, registerNames(index, value))

	return m.add(fmt.Sprintf("%s = %s", fpgaElementName(sym, index), value), timing, inst, opts)
}

// ReadFpgaIndexed reads an element of an FPGA memory map into a register.
func (m *ModuleBuilder) ReadFpgaIndexed(
	dest *expr.Register,
	name string,
	index expr.Operand,
	opts ...StatementOption,
) (*flow.Statement, error) {
	sym, err := m.memoryMap(name, index)
	if err != nil {
		return nil, err
	}
	if err := m.ns.Check(dest); err != nil {
		return nil, err
	}

	inst := insts.New(insts.OpFpgaArrayRead).
		With("fpga_memory_map", sym.Name).
		With("index", index).
		With("destination", dest)
	deps := append([]string{fpgaRegisterName(sym.Name)}, registerNames(index)...)
	timing := m.seq.table.GetTiming(inst).
		WithResources([]string{dest.FullName()}, deps)

	return m.add(fmt.Sprintf("%s = %s", dest, fpgaElementName(sym, index)), timing, inst, opts)
}
