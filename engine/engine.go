// Package engine describes the HVI engines of a system.
//
// An engine is the sequencer of one AWG or digitizer module. The engines
// are added to a System; the first engine added is the master engine that
// holds the registers of the synchronized sequence.
package engine

import (
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/seqerr"
)

// NumChannels is the number of channels of an AWG or digitizer module.
const NumChannels = 4

// NumFpgaUserEvents is the number of FPGA user events of an AWG.
const NumFpgaUserEvents = 8

// Type is the module type of an engine.
type Type uint8

// Engine types. TypeAny matches all engines in a Filter.
const (
	TypeAny Type = iota
	TypeAWG
	TypeDigitizer
)

func (t Type) String() string {
	switch t {
	case TypeAWG:
		return "awg"
	case TypeDigitizer:
		return "digitizer"
	default:
		return "any"
	}
}

// Supports reports whether an engine of this type executes op.
func (t Type) Supports(op insts.Op) bool {
	required := RequiredType(op)
	return required == TypeAny || required == t
}

// RequiredType returns the only engine type that executes op, or TypeAny.
func RequiredType(op insts.Op) Type {
	switch {
	case insts.IsAwgOnly(op):
		return TypeAWG
	case insts.IsDigitizerOnly(op):
		return TypeDigitizer
	}
	return TypeAny
}

// ParseType converts "awg" or "digitizer" to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "awg", "AWG":
		return TypeAWG, nil
	case "digitizer", "dig", "DIG":
		return TypeDigitizer, nil
	case "", "any":
		return TypeAny, nil
	}
	return TypeAny, fmt.Errorf("unknown module type '%s'", s)
}

// SymbolKind tells if an FPGA symbol is a register or a memory map.
type SymbolKind uint8

// FPGA symbol kinds.
const (
	SymbolRegister SymbolKind = iota
	SymbolMemoryMap
)

// FpgaSymbol is a register or memory map in the FPGA sandbox of an engine.
type FpgaSymbol struct {
	Name string     `yaml:"name"`
	Kind SymbolKind `yaml:"-"`

	// Size is the number of words of a memory map.
	Size int `yaml:"size,omitempty"`
}

// Engine is the HVI engine of one module.
type Engine struct {
	Alias   string
	Name    string
	Type    Type
	Chassis int
	Slot    int

	events     []*expr.Event
	registers  map[string]*FpgaSymbol
	memoryMaps map[string]*FpgaSymbol
}

func newEngine(alias string, t Type, chassis, slot int) *Engine {
	prefix := "AWG"
	if t == TypeDigitizer {
		prefix = "DIG"
	}
	name := fmt.Sprintf("%s%d-%d", prefix, chassis, slot)
	if alias == "" {
		alias = name
	}

	e := &Engine{
		Alias:      alias,
		Name:       name,
		Type:       t,
		Chassis:    chassis,
		Slot:       slot,
		events:     []*expr.Event{},
		registers:  map[string]*FpgaSymbol{},
		memoryMaps: map[string]*FpgaSymbol{},
	}

	if t == TypeAWG {
		for i := range NumFpgaUserEvents {
			hw := fmt.Sprintf("fpga_user_%d", i)
			e.events = append(e.events, &expr.Event{Engine: alias, Name: hw, HwName: hw})
		}
	}

	return e
}

// Events returns the events of the engine.
func (e *Engine) Events() []*expr.Event {
	return slices.Clone(e.events)
}

// Event returns the event with the given name.
func (e *Engine) Event(name string) (*expr.Event, error) {
	for _, ev := range e.events {
		if ev.Name == name {
			return ev, nil
		}
	}
	return nil, &seqerr.LookupError{Kind: "event", Name: name, Scope: e.Alias}
}

// OwnsEvent returns true if the event belongs to the engine.
func (e *Engine) OwnsEvent(ev *expr.Event) bool {
	return slices.Contains(e.events, ev)
}

// LoadFpgaSymbols sets the FPGA registers and memory maps of the sandbox.
// Symbols loaded earlier are replaced.
func (e *Engine) LoadFpgaSymbols(registers, memoryMaps []FpgaSymbol) {
	e.registers = make(map[string]*FpgaSymbol, len(registers))
	for _, r := range registers {
		r.Kind = SymbolRegister
		e.registers[r.Name] = &r
	}

	e.memoryMaps = make(map[string]*FpgaSymbol, len(memoryMaps))
	for _, m := range memoryMaps {
		m.Kind = SymbolMemoryMap
		e.memoryMaps[m.Name] = &m
	}

	log.WithFields(log.Fields{
		"engine":      e.Alias,
		"registers":   len(registers),
		"memory_maps": len(memoryMaps),
	}).Debug("loaded fpga symbols")
}

// FpgaRegister returns an FPGA register of the sandbox.
func (e *Engine) FpgaRegister(name string) (*FpgaSymbol, error) {
	if r, ok := e.registers[name]; ok {
		return r, nil
	}
	return nil, &seqerr.LookupError{Kind: "fpga register", Name: name, Scope: e.Alias}
}

// FpgaMemoryMap returns an FPGA memory map of the sandbox.
func (e *Engine) FpgaMemoryMap(name string) (*FpgaSymbol, error) {
	if m, ok := e.memoryMaps[name]; ok {
		return m, nil
	}
	return nil, &seqerr.LookupError{Kind: "fpga memory map", Name: name, Scope: e.Alias}
}

// CheckChannels returns an error if a channel number is out of range.
func (e *Engine) CheckChannels(channels []int) error {
	for _, ch := range channels {
		if ch < 1 || ch > NumChannels {
			return fmt.Errorf("%s: channel %d out of range 1..%d", e.Alias, ch, NumChannels)
		}
	}
	return nil
}
