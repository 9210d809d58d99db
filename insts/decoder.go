package insts

import "strings"

// Decoder maps vendor instruction names to instructions.
type Decoder struct {
	byName map[string]Op
}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	d := &Decoder{byName: make(map[string]Op, len(opTable))}
	for op, info := range opTable {
		if op == OpUnknown {
			continue
		}
		d.byName[info.name] = op
	}

	// Names used by engine firmware for the same instructions.
	d.byName["awg_flush"] = OpAwgQueueFlush
	d.byName["prescaler_config"] = OpPrescalerConfig

	return d
}

// Decode decodes a vendor instruction name. Names are case insensitive.
// Unknown names decode to an instruction with OpUnknown.
func (d *Decoder) Decode(name string) *Instruction {
	op, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		inst := New(OpUnknown)
		inst.Name = name
		return inst
	}
	return New(op)
}

// IsAction reports whether the op is executed through action_execute.
func IsAction(op Op) bool {
	return opTable[op].class == ClassAction
}

// IsAwgOnly reports whether the op is only available on AWG engines.
func IsAwgOnly(op Op) bool {
	switch op {
	case OpAwgStart, OpAwgTrigger, OpAwgStop, OpAwgResetPhase, OpAwgQueueFlush,
		OpQueueWaveform, OpSetAmplitude, OpSetOffset, OpSetFrequency,
		OpSetWaveshape, OpSetPhase, OpModulationAngleConfig,
		OpModulationAmplitudeConfig:
		return true
	default:
		return false
	}
}

// IsDigitizerOnly reports whether the op is only available on digitizers.
func IsDigitizerOnly(op Op) bool {
	switch op {
	case OpDaqStart, OpDaqTrigger, OpDaqStop, OpDaqConfig, OpPrescalerConfig,
		OpChannelTriggerConfig, OpDaqAnalogTriggerConfig:
		return true
	default:
		return false
	}
}
