package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hviseq/script"
	"github.com/sarchlab/hviseq/seqerr"
	"github.com/sarchlab/hviseq/sequencer"
	"github.com/sarchlab/hviseq/timing/latency"
)

// compile builds and compiles a script. Compilation errors are printed in
// the listing of the script.
func compile(cmd *cobra.Command, path string) (*script.Program, *sequencer.Exec, error) {
	p, err := buildScript(cmd, path)
	if err != nil {
		return nil, nil, err
	}

	exec, err := p.Sequencer.Compile(cmd.Context())
	var compileErr *seqerr.CompilationError
	if errors.As(err, &compileErr) {
		opts := sequencer.DefaultDescribeOptions()
		opts.Color = useColor(cmd)
		fmt.Fprint(cmd.OutOrStdout(), p.Sequencer.Describe(opts))
	}
	if err != nil {
		p.Sequencer.Close()
		return nil, nil, err
	}

	return p, exec, nil
}

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile script_file",
		Short: "Compile a script with the simulator backend.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, exec, err := compile(cmd, args[0])
			if err != nil {
				return err
			}
			defer p.Sequencer.Close()
			defer exec.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "compiled %s\n", p.Sequencer.Alias())
			return nil
		},
	}
	cmd.Flags().Bool("no-color", false, "never color the output")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] script_file",
		Short: "Run a script on the simulator and print the registers.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, exec, err := compile(cmd, args[0])
			if err != nil {
				return err
			}
			defer p.Sequencer.Close()
			defer exec.Close()

			if err := exec.Load(); err != nil {
				return err
			}
			defer exec.Unload()

			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			if err := exec.Run(ctx); err != nil {
				return err
			}
			log.WithField("elapsed", time.Since(start)).Debug("run finished")

			values, err := exec.ListRegisters()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%-24s %d\n", "["+name+"]", values[name])
			}
			return nil
		},
	}
	cmd.Flags().Duration("timeout", sequencer.DefaultRunTimeout, "maximum run time")
	cmd.Flags().Bool("no-color", false, "never color the output")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [output_file]",
		Short: "Print or save the timing configuration.",
		Long: `Print the timing configuration in use, or save it to a file that can
be edited and passed back with --timing-config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := latency.DefaultTimingConfig()
			if path := GetString(cmd, "timing-config"); path != "" {
				var err error
				if config, err = latency.LoadConfig(path); err != nil {
					return err
				}
			}

			if len(args) == 1 {
				return config.SaveConfig(args[0])
			}

			data, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
