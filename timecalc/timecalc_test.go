package timecalc_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/builder"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/timecalc"
	"github.com/sarchlab/hviseq/timing/latency"
)

var waitSpec = latency.TimingSpec{FetchCycles: 1}

var _ = Describe("Calc", func() {
	var (
		tree *flow.Tree
		calc *timecalc.Calc
		sync *builder.Builder
	)

	wait := func(b *builder.Builder, ns uint64) {
		_, err := b.AddStatement("wait", waitSpec, nil, &ns)
		Expect(err).NotTo(HaveOccurred())
	}

	line := func(l string) *flow.Statement {
		st, ok := tree.Lookup(l)
		Expect(ok).To(BeTrue(), "line "+l)
		return st
	}

	BeforeEach(func() {
		table := latency.NewTable()
		tree = flow.NewTree()
		calc = timecalc.New(tree)
		root := tree.NewSequence(flow.NoSequence, "", table.MainEntryLatencyNs(), "main")
		sync = builder.New(tree, "sync", nil)
		awg := builder.New(tree, "AWG1", nil)
		dig := builder.New(tree, "DIG1", nil)

		main, _ := sync.OpenRoot(root.ID)
		Expect(main.Do(func() error {
			wait(sync, 30) // 1

			loop, err := sync.OpenLoop(builder.HandleWhile, "while", table.While(1), nil) // 2
			Expect(err).NotTo(HaveOccurred())
			Expect(loop.Do(func() error {
				wait(sync, 100) // 3
				return nil
			})).To(Succeed())

			_, err = sync.AddStatement("x", waitSpec, nil, nil) // 4
			Expect(err).NotTo(HaveOccurred())

			block, err := sync.OpenSynced("sync_block", table.SyncedBlock(), nil, // 5
				[]builder.LaneBuilder{
					{Engine: "AWG1", ModuleID: "A", Builder: awg},
					{Engine: "DIG1", ModuleID: "B", Builder: dig},
				})
			Expect(err).NotTo(HaveOccurred())
			Expect(block.Do(func() error {
				wait(awg, 150) // 5A1
				wait(dig, 90)  // 5B1
				return nil
			})).To(Succeed())

			_, err = sync.AddStatement("y", waitSpec, nil, nil) // 6
			Expect(err).NotTo(HaveOccurred())
			wait(sync, 20) // 7
			wait(sync, 30) // 8
			wait(sync, 10) // 9

			_, err = sync.AddStatement("wait [x]",
				latency.TimingSpec{FetchCycles: 1, NonDeterministic: "[x]"}, nil, nil) // 10
			return err
		})).To(Succeed())
	})

	It("should sum the start delays of a linear sequence", func() {
		d, err := calc.TimeBetween(line("6"), line("9"))

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Ns).To(Equal(uint64(60)))
		Expect(d.IsDeterministic()).To(BeTrue())
		Expect(d.String()).To(Equal("60"))
	})

	It("should add the term of a loop between the statements", func() {
		d, err := calc.TimeBetween(line("1"), line("4"))

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Ns).To(Equal(uint64(240)))
		Expect(d.Terms).To(Equal([]string{"N_2*(100 + 60)"}))
	})

	It("should descend into the loop holding the end", func() {
		d, err := calc.TimeBetween(line("1"), line("3"))

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Ns).To(Equal(uint64(170)))
		Expect(d.Terms).To(BeEmpty())
	})

	It("should descend into the lane holding the end", func() {
		d, err := calc.TimeBetween(line("4"), line("5B1"))

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Ns).To(Equal(uint64(100)))
		Expect(d.Terms).To(BeEmpty())
	})

	It("should add the term of a synced block", func() {
		d, err := calc.TimeBetween(line("4"), line("6"))

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Ns).To(Equal(uint64(170)))
		Expect(d.Terms).To(Equal([]string{"max(150, 90)"}))
	})

	It("should include the term of the end statement", func() {
		d, err := calc.TimeBetweenLines("9", "10")

		Expect(err).NotTo(HaveOccurred())
		Expect(d.String()).To(Equal("10 + [x]"))
	})

	It("should fail between lanes of a synced block", func() {
		_, err := calc.TimeBetween(line("5A1"), line("5B1"))

		var le *seqerr.LookupError
		Expect(errors.As(err, &le)).To(BeTrue())
		Expect(le.Name).To(Equal("5A1"))
	})

	It("should fail when start is after end", func() {
		_, err := calc.TimeBetween(line("4"), line("1"))
		Expect(err).To(HaveOccurred())
	})

	It("should fail on unknown lines", func() {
		_, err := calc.TimeBetweenLines("1", "99")

		var le *seqerr.LookupError
		Expect(errors.As(err, &le)).To(BeTrue())
	})
})
