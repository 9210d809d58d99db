package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hviseq/script"
)

func newTimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "time script_file [from to]",
		Short: "Print the time between statements.",
		Long: `Print the time between two statements given by label or line id,
or answer the queries of the script when no statements are given.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("expected a script and optionally two statements, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildScript(cmd, args[0])
			if err != nil {
				return err
			}
			defer p.Sequencer.Close()

			var results []script.QueryResult
			if len(args) == 3 {
				d, err := p.TimeBetween(args[1], args[2])
				if err != nil {
					return err
				}
				results = append(results, script.QueryResult{
					Name:     args[1] + " -> " + args[2],
					From:     p.Line(args[1]),
					To:       p.Line(args[2]),
					Duration: d,
				})
			} else if results, err = p.Queries(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%-24s %6s -> %-6s %s ns\n", r.Name, r.From, r.To, r.Duration)
			}
			return nil
		},
	}
}

func newHazardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hazards script_file",
		Short: "List the register and FPGA hazards of a script.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildScript(cmd, args[0])
			if err != nil {
				return err
			}
			defer p.Sequencer.Close()

			out := cmd.OutOrStdout()
			hazards := p.Sequencer.Hazards()
			if len(hazards) == 0 {
				fmt.Fprintln(out, "no hazards")
				return nil
			}
			for _, h := range hazards {
				fmt.Fprintf(out, "%-6s %s hazard on %s after %s, add %d ns\n",
					h.Line, h.Kind, h.Resource, h.ProducerLine, h.StallNs)
			}
			return nil
		},
	}
}
