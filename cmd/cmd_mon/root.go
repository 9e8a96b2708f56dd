// Package cmd_mon is the monitor controller CLI.
package cmd_mon

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koa-ops/monctl/config"
	"github.com/koa-ops/monctl/control"
	"github.com/koa-ops/monctl/launcher"
	"github.com/koa-ops/monctl/pkg/x_log"
	"github.com/koa-ops/monctl/procfind"
	"github.com/koa-ops/monctl/registry"
)

var (
	configPath string
	jsonOut    bool
)

// run executes a parsed command against an optional role-override token.
// Swappable so CLI tests can observe dispatch without touching the host.
var run = runControl

// RootCmd is the entry point. Invoked bare it reports status for the host's
// resolved role.
var RootCmd = &cobra.Command{
	Use:   "monctl",
	Short: "Manage the per-instrument monitor daemons on this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(control.Status, "")
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $MONCTL_CONFIG)")
	RootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit the closing status report as JSON")
}

// Execute runs the CLI. Every fatal condition terminates non-zero before any
// process is launched or signalled.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// roleArg extracts the optional role-override token.
func roleArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// effectiveRole applies an optional role-override token to the role the host
// resolved to. The override is honoured only on a combined-role host; a leaf
// host accepts the token and drops it, because leaf roles only ever run their
// own instruments. ignored reports a dropped token. A token that names no
// known role is an error on every host.
func effectiveRole(resolved registry.ServerRole, token string) (role registry.ServerRole, ignored bool, err error) {
	if token == "" {
		return resolved, false, nil
	}
	override, err := registry.ParseRole(token)
	if err != nil {
		return "", false, err
	}
	if resolved.Combined() {
		return override, false, nil
	}
	return resolved, true, nil
}

// runControl wires the controller from config and executes cmd.
func runControl(cmd control.Command, roleToken string) error {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return err
	}
	x_log.InitWithConfig(&cfg.Logger, "monctl")
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("resolve hostname: %w", err)
	}
	role, err := reg.Resolve(hostname)
	if err != nil {
		return err
	}

	role, ignored, err := effectiveRole(role, roleToken)
	if err != nil {
		return err
	}
	if ignored {
		x_log.Debug().Str("role", string(role)).Str("override", roleToken).
			Msg("role override ignored on leaf host")
	}

	finder, err := procfind.New(cfg.MonitorCmd, cfg.MonitorDRPCmd)
	if err != nil {
		return err
	}

	ctl := control.New(reg, finder,
		launcher.New(cfg.MonitorCmd, cfg.MonitorDRPCmd, cfg.LogDir),
		launcher.TermSignaler{}, cfg.LaunchDelay(), os.Stdout)
	ctl.JSON = jsonOut
	return ctl.Run(cmd, role)
}
