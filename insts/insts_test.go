package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i).To(BeZero())
	})

	It("should have a Decoder type", func() {
		decoder := insts.NewDecoder()
		Expect(decoder).ToNot(BeNil())
	})

	It("should create instructions with a fresh parameter map", func() {
		a := insts.New(insts.OpAssign).With("destination", "[x]")
		b := insts.New(insts.OpAssign)

		Expect(a.Params).To(HaveKeyWithValue("destination", "[x]"))
		Expect(b.Params).To(BeEmpty())
		Expect(a.Name).To(Equal("assign"))
		Expect(a.Class).To(Equal(insts.ClassHvi))
	})

	It("should render op names", func() {
		Expect(insts.OpQueueWaveform.String()).To(Equal("queue_waveform"))
		Expect(insts.Op(9999).String()).To(Equal("op(9999)"))
	})
})
