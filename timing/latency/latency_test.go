package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/timing/latency"
)

var _ = Describe("TimingSpec", func() {
	It("should derive the cycle length from the engine clock", func() {
		Expect(latency.NsPerCycle).To(Equal(uint64(10)))
		Expect(latency.ClockFrequency.Cycle(sim.VTimeInSec(1e-6))).To(Equal(uint64(100)))
		Expect(float64(sim.GHz) / float64(latency.ClockFrequency)).
			To(BeNumerically("==", latency.NsPerCycle))
	})

	It("should use the fetch time as tail", func() {
		spec := latency.TimingSpec{FetchCycles: 3, EndLatencyCycles: 1}
		Expect(spec.TailNs()).To(Equal(uint64(30)))
	})

	It("should use the end latency as tail when longer than fetch", func() {
		spec := latency.TimingSpec{FetchCycles: 3, EndLatencyCycles: 7}
		Expect(spec.TailNs()).To(Equal(uint64(70)))
	})

	It("should convert the loop latencies", func() {
		spec := latency.TimingSpec{EntryLatencyCycles: 2, IterationOverheadCycles: 6, ExitOverheadCycles: 1}
		Expect(spec.EntryLatencyNs()).To(Equal(uint64(20)))
		Expect(spec.IterationOverheadNs()).To(Equal(uint64(60)))
		Expect(spec.ExitOverheadNs()).To(Equal(uint64(10)))
	})

	It("should add the start latency to the previous tail", func() {
		spec := latency.TimingSpec{FetchCycles: 1, StartLatencyCycles: 2}
		Expect(latency.MinStartDelay(40, spec)).To(Equal(uint64(60)))
		Expect(latency.MinStartDelay(0, latency.TimingSpec{})).To(BeZero())
	})

	It("should copy hazard identifiers", func() {
		resources := []string{"[a]"}
		spec := latency.TimingSpec{}.WithResources(resources, []string{"[a]", "[b]"})
		resources[0] = "[z]"

		Expect(spec.Resources).To(Equal([]string{"[a]"}))
		Expect(spec.Dependencies).To(Equal([]string{"[a]", "[b]"}))
	})
})

var _ = Describe("Latency", func() {
	var (
		table   *latency.Table
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		table = latency.NewTable()
		decoder = insts.NewDecoder()
	})

	Describe("Default Timing Values", func() {
		It("should have the main entry latency", func() {
			Expect(table.MainEntryLatencyNs()).To(Equal(uint64(30)))
		})

		It("should have the propagation delay of one chassis", func() {
			Expect(table.Config().PropagationDelayCycles).To(Equal(uint64(10)))
		})
	})

	Describe("Action Latencies", func() {
		It("should return 122 cycles execution for awg_start", func() {
			spec := table.GetTiming(decoder.Decode("awg_start"))
			Expect(spec.FetchCycles).To(Equal(uint64(1)))
			Expect(spec.ExecutionCycles).To(Equal(uint64(122)))
			Expect(spec.TailNs()).To(Equal(uint64(10)))
		})

		It("should return 330 cycles execution for daq_trigger", func() {
			spec := table.GetTiming(decoder.Decode("daq_trigger"))
			Expect(spec.ExecutionCycles).To(Equal(uint64(330)))
		})
	})

	Describe("Instruction Latencies", func() {
		It("should use a 2 cycle fetch for queue_waveform", func() {
			spec := table.GetTiming(decoder.Decode("queue_waveform"))
			Expect(spec.FetchCycles).To(Equal(uint64(2)))
			Expect(spec.ExecutionCycles).To(Equal(uint64(1550)))
			Expect(spec.TailNs()).To(Equal(uint64(20)))
		})

		It("should return register arithmetic timings", func() {
			Expect(table.GetTiming(decoder.Decode("assign")).ExecutionCycles).To(Equal(uint64(5)))
			Expect(table.GetTiming(decoder.Decode("add")).ExecutionCycles).To(Equal(uint64(8)))
		})
	})

	Describe("Flow Control", func() {
		It("should model a delay as a 1 cycle fetch", func() {
			spec := table.WaitConstant()
			Expect(spec.TailNs()).To(Equal(uint64(10)))
			Expect(spec.StartLatencyNs()).To(BeZero())
		})

		It("should add a start latency to register waits", func() {
			spec := table.WaitRegister()
			Expect(spec.TailNs()).To(BeZero())
			Expect(spec.StartLatencyNs()).To(Equal(uint64(20)))
		})

		It("should label wait-for as non-deterministic", func() {
			Expect(table.WaitFor("[x] == 1").NonDeterministic).To(Equal("[x] == 1"))
		})

		It("should scale local loops with the number of conditions", func() {
			one := table.While(1)
			three := table.While(3)

			Expect(one.FetchCycles).To(Equal(uint64(4)))
			Expect(one.StartLatencyCycles).To(Equal(uint64(6)))
			Expect(one.EndLatencyCycles).To(Equal(uint64(7)))
			Expect(one.IterationOverheadNs()).To(Equal(uint64(60)))
			Expect(one.EntryLatencyNs()).To(Equal(uint64(20)))
			Expect(three.StartLatencyCycles - one.StartLatencyCycles).To(Equal(uint64(2)))
			Expect(three.EndLatencyCycles - one.EndLatencyCycles).To(Equal(uint64(2)))
		})

		It("should add the propagation delay to synchronized loops", func() {
			spec := table.SyncWhile(1)

			Expect(spec.StartLatencyCycles).To(Equal(uint64(16)))
			Expect(spec.EntryLatencyCycles).To(Equal(uint64(26)))
			Expect(spec.EndLatencyCycles).To(Equal(uint64(27)))
			Expect(spec.Synchronized).To(BeTrue())
		})

		It("should return the synced block latencies", func() {
			spec := table.SyncedBlock()
			Expect(spec.EntryLatencyNs()).To(Equal(uint64(20)))
			Expect(spec.TailNs()).To(Equal(uint64(10)))
			Expect(spec.StartLatencyNs()).To(BeZero())
		})

		It("should report runtime dependent instructions", func() {
			Expect(table.IsVariable(decoder.Decode("wait_time"))).To(BeTrue())
			Expect(table.IsVariable(decoder.Decode("while"))).To(BeTrue())
			Expect(table.IsVariable(decoder.Decode("awg_start"))).To(BeFalse())
		})
	})

	Describe("Nil Instruction Handling", func() {
		It("should return a 1 cycle fetch for nil instruction", func() {
			Expect(table.GetTiming(nil).FetchCycles).To(Equal(uint64(1)))
		})

		It("should return false for nil instruction variable check", func() {
			Expect(table.IsVariable(nil)).To(BeFalse())
		})
	})

	Describe("Custom Configuration", func() {
		It("should use custom config values", func() {
			config := latency.DefaultTimingConfig()
			config.PropagationDelayCycles = 20
			config.ExecutionCycles["awg_trigger"] = 200

			custom := latency.NewTableWithConfig(config)

			Expect(custom.SyncWhile(1).StartLatencyCycles).To(Equal(uint64(26)))
			Expect(custom.GetTiming(decoder.Decode("awg_trigger")).ExecutionCycles).To(Equal(uint64(200)))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("should reject zero while fetch cycles", func() {
			config := latency.DefaultTimingConfig()
			config.WhileFetchCycles = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero synced block entry cycles", func() {
			config := latency.DefaultTimingConfig()
			config.SyncedBlockEntryCycles = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject a main entry latency that is not a whole cycle", func() {
			config := latency.DefaultTimingConfig()
			config.MainEntryLatencyNs = 35
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject a zero fetch override", func() {
			config := latency.DefaultTimingConfig()
			config.FetchCycles["daq_config"] = 0
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.PropagationDelayCycles = 100
			clone.ExecutionCycles["awg_start"] = 1

			Expect(original.PropagationDelayCycles).To(Equal(uint64(10)))
			Expect(original.ExecutionCycles["awg_start"]).To(Equal(uint64(122)))
			Expect(clone.PropagationDelayCycles).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := latency.DefaultTimingConfig()
			original.PropagationDelayCycles = 20
			original.ExecutionCycles["daq_trigger"] = 400

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.PropagationDelayCycles).To(Equal(uint64(20)))
			Expect(loaded.ExecutionCycles["daq_trigger"]).To(Equal(uint64(400)))
		})

		It("should accept firmware instruction names", func() {
			path := filepath.Join(tempDir, "firmware.json")
			data := []byte(`{"execution_cycles": {"awg_flush": 200}, "fetch_cycles": {"prescaler_config": 3}}`)
			Expect(os.WriteFile(path, data, 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ExecutionCycles).To(HaveKeyWithValue("awg_queue_flush", uint64(200)))
			Expect(loaded.ExecutionCycles).NotTo(HaveKey("awg_flush"))
			Expect(loaded.FetchCycles).To(HaveKeyWithValue("channel_prescaler_config", uint64(3)))
			Expect(loaded.FetchCycles).To(HaveKeyWithValue("queue_waveform", uint64(2)))
		})

		It("should reject unknown instruction names", func() {
			path := filepath.Join(tempDir, "unknown.json")
			data := []byte(`{"execution_cycles": {"teleport": 5}}`)
			Expect(os.WriteFile(path, data, 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring(`execution_cycles: unknown instruction "teleport"`)))
		})

		It("should keep defaults for fields missing from the file", func() {
			path := filepath.Join(tempDir, "partial.json")
			data := []byte(`{"propagation_delay_cycles": 30, "execution_cycles": {"awg_start": 1}}`)
			Expect(os.WriteFile(path, data, 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.PropagationDelayCycles).To(Equal(uint64(30)))
			Expect(loaded.MainEntryLatencyNs).To(Equal(uint64(30)))
			Expect(loaded.ExecutionCycles["awg_start"]).To(Equal(uint64(1)))
			Expect(loaded.ExecutionCycles["awg_trigger"]).To(Equal(uint64(112)))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
