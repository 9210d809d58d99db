// Package insts provides the HVI instruction vocabulary used by sequences.
//
// Every statement appended to a sequence carries an Instruction. The Op
// selects the timing spec that applies to it, and the vendor Name is what a
// backend uses to emit the instruction. Supported classes:
//   - Flow control: delay, wait time, wait for condition, while, synced block
//   - Register arithmetic: assign, add, subtract
//   - FPGA access: register and memory map reads and writes
//   - Engine actions and instructions for AWG and digitizer engines
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode("awg_trigger")
//	fmt.Printf("Op: %v, Class: %v\n", inst.Op, inst.Class)
package insts

import "fmt"

// Op represents an HVI instruction opcode.
type Op uint16

// HVI opcodes.
const (
	OpUnknown Op = iota

	// Flow control.
	OpDelay
	OpWaitTime
	OpWait
	OpWhile
	OpSyncWhile
	OpSyncBlock

	// Register arithmetic.
	OpAssign
	OpAdd
	OpSubtract

	// FPGA access.
	OpFpgaRegisterRead
	OpFpgaRegisterWrite
	OpFpgaArrayRead
	OpFpgaArrayWrite

	// AWG actions.
	OpAwgStart
	OpAwgTrigger
	OpAwgStop
	OpAwgResetPhase
	OpAwgQueueFlush

	// AWG instructions.
	OpQueueWaveform
	OpSetAmplitude
	OpSetOffset
	OpSetFrequency
	OpSetWaveshape
	OpSetPhase
	OpModulationAngleConfig
	OpModulationAmplitudeConfig

	// Digitizer actions.
	OpDaqStart
	OpDaqTrigger
	OpDaqStop

	// Digitizer instructions.
	OpDaqConfig
	OpPrescalerConfig
	OpChannelTriggerConfig
	OpDaqAnalogTriggerConfig
)

// Class groups opcodes by who implements them.
type Class uint8

// Instruction classes.
const (
	ClassUnknown Class = iota
	ClassFlow          // Sequencer flow control
	ClassHvi           // Generic HVI instruction set (registers, FPGA)
	ClassAction        // Engine action executed through action_execute
	ClassEngine        // Engine specific instruction set
)

// Instruction is an instruction as emitted to the backend.
type Instruction struct {
	Op    Op
	Class Class

	// Name is the vendor instruction name, e.g. "queue_waveform".
	Name string

	// Params holds the textual value per vendor parameter name.
	Params map[string]string
}

// New creates an instruction for op with an empty parameter set.
func New(op Op) *Instruction {
	info := opTable[op]
	return &Instruction{
		Op:     op,
		Class:  info.class,
		Name:   info.name,
		Params: map[string]string{},
	}
}

// With sets a parameter and returns the instruction for chaining.
func (i *Instruction) With(param string, value any) *Instruction {
	i.Params[param] = fmt.Sprint(value)
	return i
}

// String returns the vendor name of the op.
func (op Op) String() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("op(%d)", uint16(op))
}

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassFlow:
		return "flow"
	case ClassHvi:
		return "hvi"
	case ClassAction:
		return "action"
	case ClassEngine:
		return "engine"
	default:
		return "unknown"
	}
}

type opInfo struct {
	name  string
	class Class
}

var opTable = map[Op]opInfo{
	OpUnknown: {"unknown", ClassUnknown},

	OpDelay:     {"delay", ClassFlow},
	OpWaitTime:  {"wait_time", ClassFlow},
	OpWait:      {"wait", ClassFlow},
	OpWhile:     {"while", ClassFlow},
	OpSyncWhile: {"sync_while", ClassFlow},
	OpSyncBlock: {"sync_multi_sequence_block", ClassFlow},

	OpAssign:   {"assign", ClassHvi},
	OpAdd:      {"add", ClassHvi},
	OpSubtract: {"subtract", ClassHvi},

	OpFpgaRegisterRead:  {"fpga_register_read", ClassHvi},
	OpFpgaRegisterWrite: {"fpga_register_write", ClassHvi},
	OpFpgaArrayRead:     {"fpga_array_read", ClassHvi},
	OpFpgaArrayWrite:    {"fpga_array_write", ClassHvi},

	OpAwgStart:      {"awg_start", ClassAction},
	OpAwgTrigger:    {"awg_trigger", ClassAction},
	OpAwgStop:       {"awg_stop", ClassAction},
	OpAwgResetPhase: {"reset_phase", ClassAction},
	OpAwgQueueFlush: {"awg_queue_flush", ClassAction},

	OpQueueWaveform:             {"queue_waveform", ClassEngine},
	OpSetAmplitude:              {"set_amplitude", ClassEngine},
	OpSetOffset:                 {"set_offset", ClassEngine},
	OpSetFrequency:              {"set_frequency", ClassEngine},
	OpSetWaveshape:              {"set_waveshape", ClassEngine},
	OpSetPhase:                  {"set_phase", ClassEngine},
	OpModulationAngleConfig:     {"modulation_angle_config", ClassEngine},
	OpModulationAmplitudeConfig: {"modulation_amplitude_config", ClassEngine},

	OpDaqStart:   {"daq_start", ClassAction},
	OpDaqTrigger: {"daq_trigger", ClassAction},
	OpDaqStop:    {"daq_stop", ClassAction},

	OpDaqConfig:              {"daq_config", ClassEngine},
	OpPrescalerConfig:        {"channel_prescaler_config", ClassEngine},
	OpChannelTriggerConfig:   {"channel_trigger_config", ClassEngine},
	OpDaqAnalogTriggerConfig: {"daq_analog_trigger_config", ClassEngine},
}
