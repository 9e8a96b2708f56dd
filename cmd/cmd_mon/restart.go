package cmd_mon

import (
	"github.com/spf13/cobra"

	"github.com/koa-ops/monctl/control"
)

// restartCmd forces a fresh instance of every targeted monitor regardless of
// current state. A monitor that was already up keeps running alongside the
// new one.
var restartCmd = &cobra.Command{
	Use:   "restart [role]",
	Short: "Launch fresh monitor instances unconditionally",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(control.Restart, roleArg(args))
	},
}

func init() {
	RootCmd.AddCommand(restartCmd)
}
