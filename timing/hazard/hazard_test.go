package hazard_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/timing/hazard"
	"github.com/sarchlab/hviseq/timing/latency"
)

var _ = Describe("Unit", func() {
	var (
		unit *hazard.Unit
		tree *flow.Tree
		root *flow.Sequence
	)

	assign := func(line string, delay uint64, resource string, deps ...string) *flow.Statement {
		spec := latency.TimingSpec{FetchCycles: 1, ExecutionCycles: 8}.
			WithResources([]string{resource}, deps)
		st := flow.NewStatement(line, delay, 10, resource+" = x", spec, nil)
		Expect(tree.Append(root.ID, st)).To(Succeed())
		return st
	}

	BeforeEach(func() {
		unit = hazard.NewUnit()
		tree = flow.NewTree()
		root = tree.NewSequence(flow.NoSequence, "", 0, "")
	})

	It("should report a read of a register that is still written", func() {
		assign("1", 10, "[a]")
		assign("2", 30, "[b]", "[a]")

		hazards := unit.Scan(tree, root.ID)

		Expect(hazards).To(HaveLen(1))
		Expect(hazards[0].Kind).To(Equal(hazard.KindReadAfterWrite))
		Expect(hazards[0].Line).To(Equal("2"))
		Expect(hazards[0].ProducerLine).To(Equal("1"))
		Expect(hazards[0].Resource).To(Equal("[a]"))
		Expect(hazards[0].StallNs).To(Equal(uint64(50)))
	})

	It("should report a second write of a register", func() {
		assign("1", 10, "[a]")
		assign("2", 10, "[a]")

		hazards := unit.Scan(tree, root.ID)

		Expect(hazards).To(HaveLen(1))
		Expect(hazards[0].Kind.String()).To(Equal("WAW"))
	})

	It("should accumulate the delays of statements in between", func() {
		assign("1", 10, "[a]")
		assign("2", 40, "[b]")
		assign("3", 30, "[c]", "[a]")

		hazards := unit.Scan(tree, root.ID)

		Expect(hazards).To(HaveLen(1))
		Expect(hazards[0].StallNs).To(Equal(uint64(10)))
	})

	It("should not report resources that are ready", func() {
		assign("1", 10, "[a]")
		assign("2", 80, "[b]", "[a]")

		Expect(unit.Scan(tree, root.ID)).To(BeEmpty())
	})

	It("should scan loop bodies and stop at branches", func() {
		assign("1", 10, "[a]")
		loop := flow.NewStatement("2", 10, 10, "while", latency.TimingSpec{FetchCycles: 4}, nil)
		Expect(tree.Append(root.ID, loop)).To(Succeed())
		body := tree.AddBody(loop, 20, "")

		inner := flow.NewStatement("3", 20, 20, "[a] = 1",
			latency.TimingSpec{FetchCycles: 1, ExecutionCycles: 8}.WithResources([]string{"[a]"}, nil), nil)
		Expect(tree.Append(body.ID, inner)).To(Succeed())
		reader := flow.NewStatement("4", 10, 10, "[b] = [a]",
			latency.TimingSpec{FetchCycles: 1}.WithResources([]string{"[b]"}, []string{"[a]"}), nil)
		Expect(tree.Append(body.ID, reader)).To(Succeed())
		tree.CloseBranch(loop)

		after := flow.NewStatement("5", 100, 100, "[c] = [a]",
			latency.TimingSpec{FetchCycles: 1}.WithResources(nil, []string{"[a]"}), nil)
		Expect(tree.Append(root.ID, after)).To(Succeed())

		hazards := unit.Scan(tree, root.ID)

		Expect(hazards).To(HaveLen(1))
		Expect(hazards[0].Line).To(Equal("4"))
		Expect(hazards[0].StallNs).To(Equal(uint64(70)))
	})
})
