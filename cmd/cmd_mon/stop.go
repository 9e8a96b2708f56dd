package cmd_mon

import (
	"github.com/spf13/cobra"

	"github.com/koa-ops/monctl/control"
)

// stopCmd terminates each targeted monitor, but only when exactly one
// matching process is observed; ambiguous sets are left to the operator.
var stopCmd = &cobra.Command{
	Use:   "stop [role]",
	Short: "Stop running monitors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(control.Stop, roleArg(args))
	},
}

func init() {
	RootCmd.AddCommand(stopCmd)
}
