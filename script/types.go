package script

import (
	"fmt"

	"go.yaml.in/yaml/v3"
)

// Script is a program as read from a YAML file.
type Script struct {
	Name            string         `yaml:"name"`
	Engines         []EngineSpec   `yaml:"engines"`
	SyncRegisters   []RegisterSpec `yaml:"sync_registers,omitempty"`
	ModuleRegisters []RegisterSpec `yaml:"module_registers,omitempty"`
	Main            []StepSpec     `yaml:"main"`
	Queries         []QuerySpec    `yaml:"queries,omitempty"`
}

// EngineSpec declares an engine and its FPGA sandbox.
type EngineSpec struct {
	Alias   string `yaml:"alias"`
	Type    string `yaml:"type"`
	Chassis int    `yaml:"chassis"`
	Slot    int    `yaml:"slot"`

	FpgaRegisters  []FpgaSymbolSpec `yaml:"fpga_registers,omitempty"`
	FpgaMemoryMaps []FpgaSymbolSpec `yaml:"fpga_memory_maps,omitempty"`
}

// FpgaSymbolSpec is an FPGA register or memory map.
type FpgaSymbolSpec struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size,omitempty"`
}

// RegisterSpec declares a register. Module registers are added to the
// engines listed, or to the engines of the type, or to all engines.
type RegisterSpec struct {
	Name    string   `yaml:"name"`
	Initial int      `yaml:"initial,omitempty"`
	Engines []string `yaml:"engines,omitempty"`
	Type    string   `yaml:"type,omitempty"`
}

// QuerySpec asks for the time between two statements, given by label or
// line id.
type QuerySpec struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// StepSpec is one statement or scope. Exactly one action is set.
type StepSpec struct {
	Label      string  `yaml:"label,omitempty"`
	StartDelay *uint64 `yaml:"start_delay,omitempty"`

	// Flow control.
	Wait         *uint64     `yaml:"wait,omitempty"`
	WaitRegister string      `yaml:"wait_register,omitempty"`
	WaitFor      *CondSpec   `yaml:"wait_for,omitempty"`
	While        *WhileSpec  `yaml:"while,omitempty"`
	Repeat       *RepeatSpec `yaml:"repeat,omitempty"`

	// Synced maps an engine alias, "awg", "digitizer" or "all" to the
	// steps of the selected engines. Keys are applied in file order.
	Synced *SyncedSpec `yaml:"synced,omitempty"`

	// Registers.
	Set       *SetSpec `yaml:"set,omitempty"`
	Increment string   `yaml:"increment,omitempty"`

	// Engine actions. An empty list selects all channels.
	Start      *[]int `yaml:"start,omitempty"`
	Trigger    *[]int `yaml:"trigger,omitempty"`
	Stop       *[]int `yaml:"stop,omitempty"`
	ResetPhase *[]int `yaml:"reset_phase,omitempty"`
	QueueFlush *[]int `yaml:"queue_flush,omitempty"`

	// AWG instructions.
	QueueWaveform *WaveformSpec `yaml:"queue_waveform,omitempty"`
	Amplitude     *ChannelValue `yaml:"amplitude,omitempty"`
	Offset        *ChannelValue `yaml:"offset,omitempty"`
	Frequency     *ChannelValue `yaml:"frequency,omitempty"`
	Phase         *ChannelValue `yaml:"phase,omitempty"`

	// Digitizer instructions.
	DaqConfig *AcquisitionSpec `yaml:"daq_config,omitempty"`
	Prescaler *PrescalerSpec   `yaml:"prescaler,omitempty"`

	// FPGA access.
	FpgaWrite *FpgaWriteSpec `yaml:"fpga_write,omitempty"`
	FpgaRead  *FpgaReadSpec  `yaml:"fpga_read,omitempty"`
}

// SyncedGroup is one key of a synced step and the steps of the engines it
// selects.
type SyncedGroup struct {
	Engines string
	Line    int
	Steps   []StepSpec
}

// SyncedSpec is the list of groups of a synced step, in file order.
type SyncedSpec []SyncedGroup

// UnmarshalYAML reads the engine to steps mapping. The steps of each group
// are decoded with unknown keys rejected, like the rest of the script.
func (s *SyncedSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: synced must map engines to steps", node.Line)
	}

	groups := make(SyncedSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		g := SyncedGroup{Engines: key.Value, Line: key.Line}
		if err := decodeStrict(value, &g.Steps); err != nil {
			return fmt.Errorf("line %d: %s: %w", key.Line, key.Value, err)
		}
		groups = append(groups, g)
	}

	*s = groups
	return nil
}

// CondSpec is a condition. Set one of the comparison, the event or the
// logical terms.
type CondSpec struct {
	Register string `yaml:"register,omitempty"`
	Op       string `yaml:"op,omitempty"`
	Value    any    `yaml:"value,omitempty"`

	Event  string `yaml:"event,omitempty"`
	Engine string `yaml:"engine,omitempty"`

	And []CondSpec `yaml:"and,omitempty"`
	Or  []CondSpec `yaml:"or,omitempty"`
	Not *CondSpec  `yaml:"not,omitempty"`
}

// WhileSpec is a loop on a condition.
type WhileSpec struct {
	Condition CondSpec   `yaml:"condition"`
	Steps     []StepSpec `yaml:"steps"`
}

// RepeatSpec is a loop with a count. The count is a number or a register
// name.
type RepeatSpec struct {
	Count any        `yaml:"count"`
	Steps []StepSpec `yaml:"steps"`
}

// SetSpec assigns a register. Value is a number or a register name.
type SetSpec struct {
	Register string `yaml:"register"`
	Value    any    `yaml:"value,omitempty"`
	Add      []any  `yaml:"add,omitempty"`
	Subtract []any  `yaml:"subtract,omitempty"`
	Fpga     string `yaml:"fpga,omitempty"`
}

// WaveformSpec queues a waveform.
type WaveformSpec struct {
	Channel     int    `yaml:"channel"`
	Waveform    int    `yaml:"waveform"`
	Cycles      int    `yaml:"cycles,omitempty"`
	StartDelay  int    `yaml:"start_delay,omitempty"`
	Prescaler   int    `yaml:"prescaler,omitempty"`
	TriggerMode string `yaml:"trigger_mode,omitempty"`
}

// ChannelValue sets a channel parameter.
type ChannelValue struct {
	Channel int     `yaml:"channel"`
	Value   float64 `yaml:"value"`
}

// AcquisitionSpec configures a digitizer channel.
type AcquisitionSpec struct {
	Channel        int    `yaml:"channel"`
	PointsPerCycle int    `yaml:"points_per_cycle"`
	Cycles         int    `yaml:"cycles,omitempty"`
	TriggerDelay   int    `yaml:"trigger_delay,omitempty"`
	TriggerMode    string `yaml:"trigger_mode,omitempty"`
}

// PrescalerSpec sets the prescaler of a digitizer channel.
type PrescalerSpec struct {
	Channel   int `yaml:"channel"`
	Prescaler int `yaml:"prescaler"`
}

// FpgaWriteSpec writes an FPGA register, or a memory map element when
// Index is set.
type FpgaWriteSpec struct {
	Name  string `yaml:"name"`
	Index any    `yaml:"index,omitempty"`
	Value any    `yaml:"value"`
}

// FpgaReadSpec reads an FPGA register or memory map element into a
// register.
type FpgaReadSpec struct {
	Name     string `yaml:"name"`
	Index    any    `yaml:"index,omitempty"`
	Register string `yaml:"register"`
}
