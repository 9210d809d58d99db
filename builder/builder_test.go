package builder_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/builder"
	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/timing/latency"
)

var waitSpec = latency.TimingSpec{FetchCycles: 1}

func wait(b *builder.Builder, ns uint64) (*flow.Statement, error) {
	return b.AddStatement("wait", waitSpec, nil, &ns)
}

func isSyntaxError(err error) bool {
	var se *seqerr.SyntaxError
	return errors.As(err, &se)
}

var _ = Describe("Builder", func() {
	var (
		tree  *flow.Tree
		root  *flow.Sequence
		table *latency.Table
		sync  *builder.Builder
		main  *builder.Block
	)

	BeforeEach(func() {
		tree = flow.NewTree()
		table = latency.NewTable()
		root = tree.NewSequence(flow.NoSequence, "", table.MainEntryLatencyNs(), "main")
		sync = builder.New(tree, "sync", nil)

		var err error
		main, err = sync.OpenRoot(root.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject statements outside an active scope", func() {
		b := builder.New(tree, "idle", nil)
		Expect(b.State()).To(Equal(builder.StateInactive))

		_, err := wait(b, 100)
		Expect(isSyntaxError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("not in active scope"))
	})

	It("should require entry of an opened scope", func() {
		Expect(sync.State()).To(Equal(builder.StateAwaitEntry))

		_, err := wait(sync, 100)
		Expect(err).To(MatchError(ContainSubstring("expected scope entry")))
	})

	It("should return to inactive when the root is exited", func() {
		_, err := main.Enter()
		Expect(err).NotTo(HaveOccurred())
		Expect(sync.State()).To(Equal(builder.StateActive))

		Expect(main.Exit()).To(Succeed())
		Expect(sync.State()).To(Equal(builder.StateInactive))
		Expect(sync.Depth()).To(BeZero())
	})

	It("should reject calls on a closed builder", func() {
		sync.Close()

		_, err := main.Enter()
		Expect(err).To(MatchError(ContainSubstring("sequence builder is closed")))
	})

	Context("in the main sequence", func() {
		BeforeEach(func() {
			_, err := main.Enter()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should number lines in declaration order", func() {
			Expect(sync.Line()).To(Equal("1"))

			st1, err := wait(sync, 30)
			Expect(err).NotTo(HaveOccurred())
			st2, err := sync.AddStatement("x", waitSpec, nil, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(st1.Line).To(Equal("1"))
			Expect(st2.Line).To(Equal("2"))
			Expect(st2.StartDelay).To(Equal(uint64(10)))
			Expect(st2.MinStartDelay).To(Equal(uint64(10)))
		})

		It("should reject a short start delay and leave the tree unchanged", func() {
			_, err := wait(sync, 10)

			var tv *seqerr.TimingViolation
			Expect(errors.As(err, &tv)).To(BeTrue())
			Expect(tv.Minimum).To(Equal(uint64(30)))
			Expect(tv.Line).To(Equal("1"))
			Expect(root.Statements).To(BeEmpty())
			Expect(root.Tail).To(Equal(uint64(30)))
			Expect(sync.Line()).To(Equal("1"))
		})

		It("should add the start latency to the minimum start delay", func() {
			_, err := sync.AddStatement("wait [x]", table.WaitRegister(), nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(root.Last().StartDelay).To(Equal(uint64(50)))
		})

		It("should close a loop on the parent tail", func() {
			loop, err := sync.OpenLoop(builder.HandleWhile, "while [x] < 3:", table.While(1), nil)
			Expect(err).NotTo(HaveOccurred())

			st := loop.Statement()
			Expect(st.Line).To(Equal("1"))
			Expect(st.StartDelay).To(Equal(uint64(90)))

			err = loop.Do(func() error {
				_, err := wait(sync, 100)
				return err
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(root.Tail).To(Equal(uint64(170)))
			Expect(st.NonDeterministic).To(Equal("N_1*(100 + 60)"))
			Expect(tree.Sequence(st.Body[0]).Statements[0].Line).To(Equal("2"))
			Expect(sync.Line()).To(Equal("3"))
		})

		It("should run exit hooks once at the end of the body", func() {
			loop, _ := sync.OpenLoop(builder.HandleWhile, "while", table.While(1), nil)
			calls := 0
			loop.OnExit(func() error {
				calls++
				_, err := sync.AddStatement("[n] += 1", waitSpec, nil, nil)
				return err
			})

			Expect(loop.Do(func() error {
				_, err := wait(sync, 100)
				return err
			})).To(Succeed())

			body := tree.Sequence(loop.Sequence())
			Expect(calls).To(Equal(1))
			Expect(body.Statements).To(HaveLen(2))
			Expect(body.Last().Text).To(Equal("[n] += 1"))
		})

		It("should enforce the stack order", func() {
			outer, _ := sync.OpenLoop(builder.HandleWhile, "outer", table.While(1), nil)
			_, _ = outer.Enter()
			inner, _ := sync.OpenLoop(builder.HandleWhile, "inner", table.While(1), nil)
			_, _ = inner.Enter()

			Expect(isSyntaxError(outer.Exit())).To(BeTrue())
			Expect(inner.Exit()).To(Succeed())
			Expect(outer.Exit()).To(Succeed())
			Expect(main.Exit()).To(Succeed())
		})

		It("should only enter the last opened scope", func() {
			first, _ := sync.OpenLoop(builder.HandleWhile, "first", table.While(1), nil)
			Expect(first.Do(func() error { return nil })).To(Succeed())

			_, err := first.Enter()
			Expect(isSyntaxError(err)).To(BeTrue())
		})

		It("should exit the block when the body fails", func() {
			loop, _ := sync.OpenLoop(builder.HandleWhile, "loop", table.While(1), nil)

			err := loop.Do(func() error {
				_, err := wait(sync, 0)
				return err
			})

			var tv *seqerr.TimingViolation
			Expect(errors.As(err, &tv)).To(BeTrue())
			Expect(sync.State()).To(Equal(builder.StateActive))
			Expect(sync.Sequence()).To(BeIdenticalTo(root))
		})

		Context("with a synced block", func() {
			var (
				awg, dig *builder.Builder
				block    *builder.SyncedBlock
			)

			BeforeEach(func() {
				awg = builder.New(tree, "AWG1", nil)
				dig = builder.New(tree, "DIG1", nil)

				var err error
				block, err = sync.OpenSynced("sync_block", table.SyncedBlock(), nil,
					[]builder.LaneBuilder{
						{Engine: "AWG1", ModuleID: "A", Builder: awg},
						{Engine: "DIG1", ModuleID: "B", Builder: dig},
					})
				Expect(err).NotTo(HaveOccurred())
			})

			It("should rejoin the lanes at the slowest lane", func() {
				_, err := block.Enter()
				Expect(err).NotTo(HaveOccurred())

				Expect(awg.Line()).To(Equal("1A1"))
				_, err = wait(awg, 150)
				Expect(err).NotTo(HaveOccurred())
				_, err = wait(dig, 90)
				Expect(err).NotTo(HaveOccurred())

				Expect(block.Exit()).To(Succeed())

				st := block.Statement()
				Expect(st.NonDeterministic).To(Equal("max(150, 90)"))
				Expect(root.Tail).To(Equal(uint64(160)))
				Expect(awg.State()).To(Equal(builder.StateInactive))
				Expect(sync.State()).To(Equal(builder.StateActive))
			})

			It("should suspend the driving builder", func() {
				_, _ = block.Enter()

				_, err := wait(sync, 100)
				Expect(err).To(MatchError(ContainSubstring("not in active scope")))
			})

			It("should reject open lane scopes on exit", func() {
				_, _ = block.Enter()
				loop, _ := awg.OpenLoop(builder.HandleWhile, "while", table.While(1), nil)
				_, _ = loop.Enter()

				Expect(isSyntaxError(block.Exit())).To(BeTrue())

				Expect(loop.Exit()).To(Succeed())
				Expect(block.Exit()).To(Succeed())
			})

			It("should roll back the lanes when a lane cannot start", func() {
				dig.Close()

				_, err := block.Enter()
				Expect(err).To(HaveOccurred())
				Expect(awg.State()).To(Equal(builder.StateInactive))
				Expect(awg.Depth()).To(BeZero())
				Expect(sync.State()).To(Equal(builder.StateAwaitEntry))
			})
		})
	})
})

var _ = Describe("State", func() {
	It("should have readable names", func() {
		Expect(builder.StateClosed.String()).To(Equal("closed"))
		Expect(builder.StateAwaitEntry.String()).To(Equal("await-entry"))
	})
})
