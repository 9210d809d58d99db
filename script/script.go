// Package script reads HVI programs from YAML files and builds them with
// a sequencer.
//
// A script declares the engines, the registers, the main sequence and
// timing queries between labelled statements:
//
//	name: single_shot
//	engines:
//	  - {alias: AWG1, type: awg, chassis: 1, slot: 2}
//	  - {alias: DIG1, type: digitizer, chassis: 1, slot: 5}
//	sync_registers:
//	  - {name: start}
//	main:
//	  - while:
//	      condition: {register: start, op: "!=", value: 1}
//	  - synced:
//	      awg:
//	        - {trigger: [], label: trigger}
//	      DIG1:
//	        - {wait: 290}
//	        - {trigger: [1, 2], label: acquire}
//	queries:
//	  - {name: trigger_to_acquire, from: trigger, to: acquire}
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/hviseq/engine"
)

func newDecoder(data []byte) *yaml.Decoder {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec
}

// decodeStrict decodes a node with unknown keys rejected. Node.Decode does
// not check keys, so the node is encoded again and read by a new decoder.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	if err := newDecoder(data).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Parse decodes a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	s := &Script{}
	if err := newDecoder(data).Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty script")
		}
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(s.Engines) == 0 {
		return nil, fmt.Errorf("script %q declares no engines", s.Name)
	}

	return s, nil
}

// Load reads and decodes a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":    path,
		"engines": len(s.Engines),
		"steps":   len(s.Main),
	}).Debug("loaded script")

	return s, nil
}

// System creates the engines declared by the script.
func (s *Script) System() (*engine.System, error) {
	system := engine.NewSystem(s.Name)

	for _, spec := range s.Engines {
		t, err := engine.ParseType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", spec.Alias, err)
		}

		var e *engine.Engine
		switch t {
		case engine.TypeAWG:
			e, err = system.AddAWG(spec.Alias, spec.Chassis, spec.Slot)
		case engine.TypeDigitizer:
			e, err = system.AddDigitizer(spec.Alias, spec.Chassis, spec.Slot)
		default:
			err = fmt.Errorf("engine %s: type must be awg or digitizer", spec.Alias)
		}
		if err != nil {
			return nil, err
		}

		e.LoadFpgaSymbols(fpgaSymbols(spec.FpgaRegisters), fpgaSymbols(spec.FpgaMemoryMaps))
	}

	return system, nil
}

func fpgaSymbols(specs []FpgaSymbolSpec) []engine.FpgaSymbol {
	symbols := make([]engine.FpgaSymbol, 0, len(specs))
	for _, spec := range specs {
		symbols = append(symbols, engine.FpgaSymbol{Name: spec.Name, Size: spec.Size})
	}
	return symbols
}
