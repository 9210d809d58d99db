package latency

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"

	"github.com/sarchlab/hviseq/insts"
)

// TimingConfig holds the cycle counts the timing table is built from.
// Values are based on the Keysight HVI-2 documentation and measurements on
// M3202A AWGs and M3102A digitizers in a single chassis.
type TimingConfig struct {
	// MainEntryLatencyNs is the entry latency of the main sync sequence.
	// Default: 30 ns.
	MainEntryLatencyNs uint64 `json:"main_entry_latency_ns"`

	// PropagationDelayCycles is the trigger propagation delay between
	// engines. Default: 10 cycles (one chassis).
	PropagationDelayCycles uint64 `json:"propagation_delay_cycles"`

	// WhileFetchCycles, WhileStartLatencyCycles, WhileEndLatencyCycles and
	// WhileIterationCycles are the base values of a local while loop. The
	// number of conditions is added to each of them.
	// Defaults: 3, 5, 6, 5 cycles.
	WhileFetchCycles        uint64 `json:"while_fetch_cycles"`
	WhileStartLatencyCycles uint64 `json:"while_start_latency_cycles"`
	WhileEndLatencyCycles   uint64 `json:"while_end_latency_cycles"`
	WhileIterationCycles    uint64 `json:"while_iteration_cycles"`

	// WhileEntryLatencyCycles is the entry latency of a local loop body.
	// Default: 2 cycles.
	WhileEntryLatencyCycles uint64 `json:"while_entry_latency_cycles"`

	// SyncWhileEntryCycles and SyncWhileEndCycles are the base entry and
	// end latency of a synchronized while loop, before adding the
	// propagation delay. Default: 14 cycles.
	SyncWhileEntryCycles uint64 `json:"sync_while_entry_cycles"`
	SyncWhileEndCycles   uint64 `json:"sync_while_end_cycles"`

	// SyncWhileLastStatementCycles is the end latency reserved for the
	// last statement of a synchronized loop body. Default: 2 cycles.
	SyncWhileLastStatementCycles uint64 `json:"sync_while_last_statement_cycles"`

	// SyncedBlockEntryCycles and SyncedBlockEndCycles are the latencies of
	// a synchronized multi-sequence block. Defaults: 2 and 1 cycles.
	SyncedBlockEntryCycles uint64 `json:"synced_block_entry_cycles"`
	SyncedBlockEndCycles   uint64 `json:"synced_block_end_cycles"`

	// WaitRegisterStartCycles is the start latency of a wait on a register
	// value. Default: 2 cycles.
	WaitRegisterStartCycles uint64 `json:"wait_register_start_cycles"`

	// FetchCycles overrides the fetch time per vendor instruction name.
	// Instructions not listed take 1 cycle.
	FetchCycles map[string]uint64 `json:"fetch_cycles"`

	// ExecutionCycles is the execution time per vendor instruction name.
	ExecutionCycles map[string]uint64 `json:"execution_cycles"`
}

// DefaultTimingConfig returns a TimingConfig with the reference values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		MainEntryLatencyNs:           30,
		PropagationDelayCycles:       10,
		WhileFetchCycles:             3,
		WhileStartLatencyCycles:      5,
		WhileEndLatencyCycles:        6,
		WhileIterationCycles:         5,
		WhileEntryLatencyCycles:      2,
		SyncWhileEntryCycles:         14,
		SyncWhileEndCycles:           14,
		SyncWhileLastStatementCycles: 2,
		SyncedBlockEntryCycles:       2,
		SyncedBlockEndCycles:         1,
		WaitRegisterStartCycles:      2,
		FetchCycles: map[string]uint64{
			"queue_waveform": 2,
			"daq_config":     2,
		},
		ExecutionCycles: map[string]uint64{
			"assign":                      5,
			"add":                         8,
			"subtract":                    8,
			"fpga_register_read":          4,
			"fpga_register_write":         4,
			"fpga_array_read":             4,
			"fpga_array_write":            4,
			"awg_start":                   122,
			"awg_trigger":                 112,
			"awg_stop":                    120,
			"reset_phase":                 120,
			"awg_queue_flush":             119,
			"queue_waveform":              1550,
			"set_amplitude":               115,
			"set_offset":                  115,
			"set_frequency":               172,
			"set_waveshape":               132,
			"set_phase":                   155,
			"modulation_angle_config":     204,
			"modulation_amplitude_config": 106,
			"daq_start":                   120,
			"daq_trigger":                 330,
			"daq_stop":                    1,
			"daq_config":                  80,
			"channel_prescaler_config":    30,
			"channel_trigger_config":      30,
			"daq_analog_trigger_config":   330,
		},
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default value.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	decoder := insts.NewDecoder()
	if config.FetchCycles, err = canonicalNames(decoder, "fetch_cycles", config.FetchCycles); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}
	if config.ExecutionCycles, err = canonicalNames(decoder, "execution_cycles", config.ExecutionCycles); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}

	return config, nil
}

// canonicalNames rekeys cycle counts by vendor instruction name. Firmware
// names such as awg_flush override the default of the vendor name.
func canonicalNames(d *insts.Decoder, field string, cycles map[string]uint64) (map[string]uint64, error) {
	out := make(map[string]uint64, len(cycles))
	var aliases []string

	for name, n := range cycles {
		inst := d.Decode(name)
		if inst.Op == insts.OpUnknown {
			return nil, fmt.Errorf("%s: unknown instruction %q", field, name)
		}
		if inst.Name != name {
			aliases = append(aliases, name)
			continue
		}
		out[name] = n
	}

	for _, name := range aliases {
		out[d.Decode(name).Name] = cycles[name]
	}

	return out, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that the values can describe a working sequencer.
func (c *TimingConfig) Validate() error {
	if c.WhileFetchCycles == 0 {
		return fmt.Errorf("while_fetch_cycles must be > 0")
	}
	if c.SyncedBlockEntryCycles == 0 {
		return fmt.Errorf("synced_block_entry_cycles must be > 0")
	}
	if c.MainEntryLatencyNs%NsPerCycle != 0 {
		return fmt.Errorf("main_entry_latency_ns must be a multiple of %d", NsPerCycle)
	}
	for name, cycles := range c.FetchCycles {
		if cycles == 0 {
			return fmt.Errorf("fetch_cycles[%s] must be > 0", name)
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	clone.FetchCycles = maps.Clone(c.FetchCycles)
	clone.ExecutionCycles = maps.Clone(c.ExecutionCycles)
	return &clone
}
