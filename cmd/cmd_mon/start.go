package cmd_mon

import (
	"github.com/spf13/cobra"

	"github.com/koa-ops/monctl/control"
)

// startCmd launches every targeted monitor that is not already running.
// Re-running start never produces a duplicate process.
var startCmd = &cobra.Command{
	Use:   "start [role]",
	Short: "Start monitors that are not already running",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(control.Start, roleArg(args))
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
