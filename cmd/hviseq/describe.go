package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sarchlab/hviseq/sequencer"
)

func newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [flags] script_file",
		Short: "Print the listing of a script.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildScript(cmd, args[0])
			if err != nil {
				return err
			}
			defer p.Sequencer.Close()

			fmt.Fprint(cmd.OutOrStdout(), p.Sequencer.Describe(describeOptions(cmd)))
			return nil
		},
	}

	cmd.Flags().Bool("tail", false, "show the tail of each statement")
	cmd.Flags().Bool("no-lines", false, "hide line ids")
	cmd.Flags().Bool("no-color", false, "never color the output")

	return cmd
}

func describeOptions(cmd *cobra.Command) sequencer.DescribeOptions {
	opts := sequencer.DefaultDescribeOptions()
	opts.Tail = GetFlag(cmd, "tail")
	opts.LineNumbers = !GetFlag(cmd, "no-lines")
	opts.Color = useColor(cmd)
	return opts
}

// useColor returns true when the output goes to a terminal and the user
// did not disable colors.
func useColor(cmd *cobra.Command) bool {
	return !GetFlag(cmd, "no-color") && term.IsTerminal(int(os.Stdout.Fd()))
}
