package engine_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/engine"
	"github.com/sarchlab/hviseq/insts"
	"github.com/sarchlab/hviseq/seqerr"
)

var _ = Describe("Type", func() {
	It("should only run engine instructions on their engine type", func() {
		Expect(engine.TypeAWG.Supports(insts.OpQueueWaveform)).To(BeTrue())
		Expect(engine.TypeDigitizer.Supports(insts.OpQueueWaveform)).To(BeFalse())
		Expect(engine.TypeDigitizer.Supports(insts.OpDaqTrigger)).To(BeTrue())
		Expect(engine.TypeAWG.Supports(insts.OpDaqTrigger)).To(BeFalse())
		Expect(engine.TypeDigitizer.Supports(insts.OpAssign)).To(BeTrue())

		Expect(engine.RequiredType(insts.OpAwgResetPhase)).To(Equal(engine.TypeAWG))
		Expect(engine.RequiredType(insts.OpPrescalerConfig)).To(Equal(engine.TypeDigitizer))
		Expect(engine.RequiredType(insts.OpWhile)).To(Equal(engine.TypeAny))
	})
})

var _ = Describe("System", func() {
	var system *engine.System

	BeforeEach(func() {
		system = engine.NewSystem("")
	})

	It("should name engines after chassis and slot", func() {
		awg, err := system.AddAWG("", 1, 3)
		Expect(err).NotTo(HaveOccurred())
		dig, err := system.AddDigitizer("dig", 1, 5)
		Expect(err).NotTo(HaveOccurred())

		Expect(awg.Name).To(Equal("AWG1-3"))
		Expect(awg.Alias).To(Equal("AWG1-3"))
		Expect(dig.Name).To(Equal("DIG1-5"))
		Expect(dig.Alias).To(Equal("dig"))
		Expect(system.Alias).To(Equal("HVI"))
	})

	It("should make the first engine the master", func() {
		Expect(system.Master()).To(BeNil())

		awg, _ := system.AddAWG("AWG1", 1, 2)
		_, _ = system.AddAWG("AWG2", 1, 3)

		Expect(system.Master()).To(BeIdenticalTo(awg))
	})

	It("should reject duplicate aliases and slots", func() {
		_, _ = system.AddAWG("AWG1", 1, 2)

		_, err := system.AddAWG("AWG1", 1, 4)
		Expect(err).To(HaveOccurred())

		_, err = system.AddDigitizer("DIG1", 1, 2)
		Expect(err).To(HaveOccurred())
	})

	It("should filter engines", func() {
		a1, _ := system.AddAWG("AWG1", 1, 2)
		a2, _ := system.AddAWG("AWG2", 1, 3)
		d1, _ := system.AddDigitizer("DIG1", 1, 5)

		Expect(system.Engines(engine.Filter{})).To(Equal([]*engine.Engine{a1, a2, d1}))
		Expect(system.Engines(engine.Filter{Type: engine.TypeDigitizer})).To(Equal([]*engine.Engine{d1}))
		Expect(system.Engines(engine.Filter{Aliases: []string{"DIG1", "AWG1"}})).
			To(Equal([]*engine.Engine{a1, d1}))
	})

	It("should fail on unknown aliases", func() {
		_, err := system.Engine("nope")

		var le *seqerr.LookupError
		Expect(errors.As(err, &le)).To(BeTrue())
	})
})

var _ = Describe("Engine", func() {
	var awg, dig *engine.Engine

	BeforeEach(func() {
		system := engine.NewSystem("test")
		awg, _ = system.AddAWG("AWG1", 1, 2)
		dig, _ = system.AddDigitizer("DIG1", 1, 5)
	})

	It("should give AWGs the fpga user events", func() {
		Expect(awg.Events()).To(HaveLen(engine.NumFpgaUserEvents))
		Expect(dig.Events()).To(BeEmpty())

		ev, err := awg.Event("fpga_user_3")
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Engine).To(Equal("AWG1"))
		Expect(awg.OwnsEvent(ev)).To(BeTrue())
	})

	It("should look up fpga symbols", func() {
		awg.LoadFpgaSymbols(
			[]engine.FpgaSymbol{{Name: "counter"}},
			[]engine.FpgaSymbol{{Name: "table", Size: 16}},
		)

		r, err := awg.FpgaRegister("counter")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Kind).To(Equal(engine.SymbolRegister))

		m, err := awg.FpgaMemoryMap("table")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Size).To(Equal(16))
		Expect(m.Kind).To(Equal(engine.SymbolMemoryMap))

		_, err = awg.FpgaRegister("table")
		Expect(err).To(HaveOccurred())
	})

	It("should check channel numbers", func() {
		Expect(awg.CheckChannels([]int{1, 2, 3, 4})).To(Succeed())
		Expect(awg.CheckChannels([]int{0})).NotTo(Succeed())
		Expect(awg.CheckChannels([]int{5})).NotTo(Succeed())
	})

	It("should parse types", func() {
		t, err := engine.ParseType("digitizer")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(engine.TypeDigitizer))

		_, err = engine.ParseType("scope")
		Expect(err).To(HaveOccurred())
	})
})
