package engine

import (
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/hviseq/seqerr"
)

// System is the set of engines a program runs on.
type System struct {
	Alias   string
	engines []*Engine
}

// NewSystem creates a system without engines.
func NewSystem(alias string) *System {
	if alias == "" {
		alias = "HVI"
	}
	log.WithField("alias", alias).Info("init HVI system")
	return &System{Alias: alias, engines: []*Engine{}}
}

// AddAWG adds the engine of an AWG module. An empty alias defaults to the
// engine name, e.g. "AWG1-3".
func (s *System) AddAWG(alias string, chassis, slot int) (*Engine, error) {
	return s.add(newEngine(alias, TypeAWG, chassis, slot))
}

// AddDigitizer adds the engine of a digitizer module.
func (s *System) AddDigitizer(alias string, chassis, slot int) (*Engine, error) {
	return s.add(newEngine(alias, TypeDigitizer, chassis, slot))
}

func (s *System) add(e *Engine) (*Engine, error) {
	for _, other := range s.engines {
		if other.Alias == e.Alias {
			return nil, fmt.Errorf("engine alias '%s' already in use", e.Alias)
		}
		if other.Chassis == e.Chassis && other.Slot == e.Slot {
			return nil, fmt.Errorf("slot %d-%d already in use by %s",
				e.Chassis, e.Slot, other.Alias)
		}
	}

	s.engines = append(s.engines, e)
	log.WithFields(log.Fields{
		"engine": e.Alias,
		"name":   e.Name,
		"type":   e.Type,
	}).Debug("added engine")

	return e, nil
}

// Master returns the first engine, or nil when the system is empty.
func (s *System) Master() *Engine {
	if len(s.engines) == 0 {
		return nil
	}
	return s.engines[0]
}

// Engine returns the engine with the given alias.
func (s *System) Engine(alias string) (*Engine, error) {
	for _, e := range s.engines {
		if e.Alias == alias {
			return e, nil
		}
	}
	return nil, &seqerr.LookupError{Kind: "engine", Name: alias, Scope: s.Alias}
}

// Filter selects engines. Aliases takes precedence over Type. The zero
// Filter selects all engines.
type Filter struct {
	Aliases []string
	Type    Type
}

// Engines returns the engines selected by the filter, in the order they
// were added.
func (s *System) Engines(f Filter) []*Engine {
	engines := make([]*Engine, 0, len(s.engines))
	for _, e := range s.engines {
		switch {
		case len(f.Aliases) > 0:
			if !slices.Contains(f.Aliases, e.Alias) {
				continue
			}
		case f.Type != TypeAny:
			if e.Type != f.Type {
				continue
			}
		}
		engines = append(engines, e)
	}
	return engines
}
