package main

import (
	"github.com/spf13/cobra"
)

var launchFlags struct {
	adapterType string
	stopOnEntry bool
	args        []string
}

var launchCmd = &cobra.Command{
	Use:   "launch <program>",
	Short: "Launch a new debuggee under an adapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program := args[0]
		return runDriver(driverOptions{
			adapterType: launchFlags.adapterType,
			mode:        "launch",
			launchArgs: map[string]any{
				"program":     program,
				"args":        launchFlags.args,
				"stopOnEntry": launchFlags.stopOnEntry,
			},
		})
	},
}

func init() {
	launchCmd.Flags().StringVar(&launchFlags.adapterType, "type", "dlv", "adapter type, as named in the adapter config file")
	launchCmd.Flags().BoolVar(&launchFlags.stopOnEntry, "stop-on-entry", false, "stop at the debuggee's entry point")
	launchCmd.Flags().StringArrayVar(&launchFlags.args, "arg", nil, "argument to pass to the debuggee (repeatable)")
}
