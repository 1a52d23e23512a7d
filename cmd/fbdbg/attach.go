package main

import (
	"github.com/spf13/cobra"
)

var attachFlags struct {
	adapterType     string
	processID       int
	asyncStopThread int64
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a running process under an adapter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := driverOptions{
			adapterType: attachFlags.adapterType,
			mode:        "attach",
			attachArgs: map[string]any{
				"processId": attachFlags.processID,
			},
		}
		if cmd.Flags().Changed("async-stop-thread") {
			t := attachFlags.asyncStopThread
			opts.asyncStopThread = &t
		}
		return runDriver(opts)
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachFlags.adapterType, "type", "dlv", "adapter type, as named in the adapter config file")
	attachCmd.Flags().IntVar(&attachFlags.processID, "pid", 0, "process id to attach to")
	attachCmd.Flags().Int64Var(&attachFlags.asyncStopThread, "async-stop-thread", 0, "pause this thread immediately after attach completes (spec.md §8 scenario 2)")
	_ = attachCmd.MarkFlagRequired("pid")
}
