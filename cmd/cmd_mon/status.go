package cmd_mon

import (
	"github.com/spf13/cobra"

	"github.com/koa-ops/monctl/control"
)

// statusCmd reports expected-vs-running monitors without acting on anything.
var statusCmd = &cobra.Command{
	Use:   "status [role]",
	Short: "Report expected and running monitors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(control.Status, roleArg(args))
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
