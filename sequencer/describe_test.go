package sequencer_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/backend"
	"github.com/sarchlab/hviseq/expr"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/sequencer"
)

// failingBackend allocates handles like the simulator and fails every
// compilation with fixed messages.
type failingBackend struct {
	*backend.Simulator
	messages []seqerr.Message
}

func (f *failingBackend) Compile(context.Context, *backend.Program) (backend.Executable, error) {
	return nil, &seqerr.CompilationError{Messages: f.messages}
}

var _ = Describe("Describe", func() {
	var (
		seq *sequencer.Sequencer
	)

	program := func() {
		start, err := seq.AddSyncRegister("start", 0)
		Expect(err).NotTo(HaveOccurred())

		sync := seq.Main()
		awg, err := seq.ModuleBuilder("AWG1")
		Expect(err).NotTo(HaveOccurred())

		main, err := sync.Main()
		Expect(err).NotTo(HaveOccurred())
		Expect(main.Do(func() error {
			block, err := sync.SyncedModules()
			if err != nil {
				return err
			}
			if err := block.Do(func() error {
				_, err := awg.Trigger(nil)
				return err
			}); err != nil {
				return err
			}

			loop, err := sync.While(expr.Equal(start, expr.Const(1)))
			if err != nil {
				return err
			}
			return loop.Do(func() error { return nil })
		})).To(Succeed())
	}

	listing := strings.Join([]string{
		"Engines:",
		"    AWG1",
		"    DIG1",
		"Registers:",
		"    [AWG1|start]:0",
		"Sequence:",
		"1     +30  " + strings.Repeat("=", 30),
		"1A" + strings.Repeat(" ", 9) + "| AWG1:",
		"1A1   +20  |   awg_trigger [1, 2, 3, 4]",
		strings.Repeat(" ", 11) + strings.Repeat("-", 30),
		"2    +190  while [start] == 1:",
		strings.Repeat(" ", 11) + "    pass",
		"",
	}, "\n")

	Context("with the simulator", func() {
		BeforeEach(func() {
			var err error
			seq, err = sequencer.New(newSystem())
			Expect(err).NotTo(HaveOccurred())
			program()
		})

		It("should list engines, registers and statements", func() {
			Expect(seq.Describe(sequencer.DefaultDescribeOptions())).To(Equal(listing))
		})

		It("should print the tail when requested", func() {
			opts := sequencer.DefaultDescribeOptions()
			opts.LineNumbers = false
			opts.Tail = true

			out := seq.Describe(opts)
			Expect(out).To(ContainSubstring("     +30  (  10)  " + strings.Repeat("=", 30)))
			Expect(out).To(ContainSubstring("          (  10)  | AWG1:"))
		})

		It("should run the compiled program", func() {
			x, err := seq.Compile(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(seq.Errors()).To(BeEmpty())
			Expect(x.Load()).To(Succeed())
			Expect(x.Run(context.Background())).To(Succeed())
			Expect(x.IsRunning()).To(BeFalse())
			Expect(x.Close()).To(Succeed())
		})

		It("should key messages without line by index", func() {
			for i := range 16 {
				_, err := seq.AddSyncRegister("r #n", i)
				Expect(err).NotTo(HaveOccurred())
			}

			_, err := seq.Compile(context.Background())

			var ce *seqerr.CompilationError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(seq.Errors()).To(HaveKey("#0"))
			Expect(seq.Describe(sequencer.DefaultDescribeOptions())).
				To(HaveSuffix("****  'AWG1': 17 registers, the engine has 16  ****\n"))
		})
	})

	Context("with compilation errors", func() {
		BeforeEach(func() {
			b := &failingBackend{
				Simulator: backend.NewSimulator(),
				messages: []seqerr.Message{
					{Description: "'1A1:awg_trigger': resource conflict with '2:while'"},
					{Description: "out of sync resources"},
				},
			}

			var err error
			seq, err = sequencer.New(newSystem(), sequencer.WithBackend(b))
			Expect(err).NotTo(HaveOccurred())
			program()
		})

		It("should map messages to the latest statement", func() {
			_, err := seq.Compile(context.Background())
			Expect(err).To(MatchError(ContainSubstring("compile Sequencer")))

			errs := seq.Errors()
			Expect(errs).To(HaveLen(2))
			Expect(errs).To(HaveKey("2"))
			Expect(errs).To(HaveKey("#1"))
		})

		It("should annotate the listing", func() {
			_, _ = seq.Compile(context.Background())

			out := seq.Describe(sequencer.DefaultDescribeOptions())
			Expect(out).To(ContainSubstring("2    +190  while [start] == 1:\n" +
				"****  '1A1:awg_trigger': resource conflict with '2:while'  ****\n"))
			Expect(out).To(HaveSuffix("****  out of sync resources  ****\n"))

			opts := sequencer.DefaultDescribeOptions()
			opts.Errors = false
			Expect(seq.Describe(opts)).To(Equal(listing))
		})
	})
})
