package main

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hviseq/timing/latency"
)

var scriptPath = filepath.Join("..", "..", "script", "testdata", "single_shot.yaml")

func run(args ...string) (string, error) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var _ = Describe("Commands", func() {
	It("should describe a script", func() {
		out, err := run("describe", "--no-color", scriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("Engines:\n    AWG1\n    AWG2\n    DIG1\n"))
		Expect(out).To(ContainSubstring("while [start] != 1:"))
		Expect(out).To(ContainSubstring("|   daq_trigger [1, 2]"))
	})

	It("should hide line ids", func() {
		out, err := run("describe", "--no-lines", scriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("2A1"))
	})

	It("should answer the queries of a script", func() {
		out, err := run("time", scriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("trigger_to_settle"))
		Expect(out).To(MatchRegexp(`2A1 -> 2A2\s+200 ns`))
	})

	It("should time two statements", func() {
		out, err := run("time", scriptPath, "trigger@AWG2", "settle@AWG2")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchRegexp(`2B1 -> 2B2\s+200 ns`))
	})

	It("should reject a single statement", func() {
		_, err := run("time", scriptPath, "trigger@AWG1")
		Expect(err).To(HaveOccurred())
	})

	It("should compile and run a script", func() {
		out, err := run("compile", scriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("compiled single_shot\n"))

		out, err = run("run", scriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchRegexp(`\[DIG1\|dig_wait\]\s+100`))
	})

	It("should report a missing script", func() {
		_, err := run("hazards", "missing.yaml")
		Expect(err).To(MatchError(ContainSubstring("failed to read script")))
	})

	It("should save the timing config", func() {
		path := filepath.Join(GinkgoT().TempDir(), "timing.json")
		_, err := run("config", path)
		Expect(err).NotTo(HaveOccurred())

		config, err := latency.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(config).To(Equal(latency.DefaultTimingConfig()))

		out, err := run("--timing-config", path, "describe", scriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Sequence:"))
	})

	It("should reject a broken timing config", func() {
		path := filepath.Join(GinkgoT().TempDir(), "timing.json")
		Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

		_, err := run("--timing-config", path, "describe", scriptPath)
		Expect(err).To(MatchError(ContainSubstring("failed to parse timing config")))
	})
})
