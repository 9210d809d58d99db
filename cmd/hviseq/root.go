package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hviseq/script"
	"github.com/sarchlab/hviseq/sequencer"
	"github.com/sarchlab/hviseq/timing/latency"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hviseq",
		Short:         "Build timing-aware HVI sequences.",
		Long:          "Build HVI sequences from YAML scripts and check their timing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if GetFlag(cmd, "verbose") {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	root.PersistentFlags().String("timing-config", "", "timing configuration JSON file")

	root.AddCommand(
		newDescribeCmd(),
		newTimeCmd(),
		newHazardsCmd(),
		newCompileCmd(),
		newRunCmd(),
		newConfigCmd(),
	)

	return root
}

// GetFlag gets an expected boolean flag, or panics if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		panic(err)
	}
	return r
}

// GetString gets an expected string flag, or panics if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		panic(err)
	}
	return r
}

// buildScript loads a script and builds it with the timing table selected
// on the command line.
func buildScript(cmd *cobra.Command, path string) (*script.Program, error) {
	s, err := script.Load(path)
	if err != nil {
		return nil, err
	}

	var opts []sequencer.Option
	if configPath := GetString(cmd, "timing-config"); configPath != "" {
		config, err := latency.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sequencer.WithTimingTable(latency.NewTableWithConfig(config)))
		log.WithField("path", configPath).Debug("loaded timing config")
	}

	return script.Build(s, opts...)
}
