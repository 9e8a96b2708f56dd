// Package control implements the monitor lifecycle policy: which instruments
// to act on, what a fresh process observation permits, and the status report
// that closes every invocation.
package control

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/koa-ops/monctl/launcher"
	"github.com/koa-ops/monctl/pkg/x_log"
	"github.com/koa-ops/monctl/procfind"
	"github.com/koa-ops/monctl/registry"
)

// Controller drives one invocation. It holds no state between instruments
// beyond its collaborators; every liveness decision re-reads the process
// table through Finder immediately before acting.
type Controller struct {
	Registry *registry.Registry
	Finder   procfind.Finder
	Launcher launcher.Launcher
	Signaler launcher.Signaler

	// Delay is the fixed wait imposed after every launch attempt, throttling
	// simultaneous monitor startups.
	Delay time.Duration

	// Out receives the operator-facing text. JSON switches the closing
	// report to a machine-readable form.
	Out  io.Writer
	JSON bool

	// Sleep is swappable so tests can count delays instead of serving them.
	Sleep func(time.Duration)

	log zerolog.Logger
}

// New wires a controller with the default clock and logger.
func New(reg *registry.Registry, finder procfind.Finder, l launcher.Launcher,
	s launcher.Signaler, delay time.Duration, out io.Writer) *Controller {
	return &Controller{
		Registry: reg,
		Finder:   finder,
		Launcher: l,
		Signaler: s,
		Delay:    delay,
		Out:      out,
		Sleep:    time.Sleep,
		log:      x_log.New("control"),
	}
}

// Run executes cmd for every instrument in the role's run lists, raw class
// first, then DRP, and always finishes with the status report. Per-instrument
// problems are isolated; only a failing report aborts the invocation.
func (c *Controller) Run(cmd Command, role registry.ServerRole) error {
	c.log.Info().Str("command", cmd.String()).Str("role", string(role)).Msg("controller run")

	for _, class := range registry.Classes {
		for _, instrument := range c.Registry.Run(role, class) {
			switch cmd {
			case Status:
				// observation happens in the report only
			case Start:
				c.start(class, instrument)
			case Restart:
				c.restart(class, instrument)
			case Stop:
				c.stop(class, instrument)
			}
		}
	}

	return c.report(cmd, role)
}

// start launches the monitor unless one is already observed running. Running
// Start twice must never produce a second process.
func (c *Controller) start(class registry.MonitorClass, instrument string) {
	pids, err := c.observe(class, instrument)
	if err != nil {
		return
	}
	if len(pids) > 0 {
		fmt.Fprintf(c.Out, "%s %s monitor already running (pid %d), not started\n",
			instrument, class, pids[0])
		return
	}
	c.launch(class, instrument)
}

// restart launches unconditionally. A monitor that was already up keeps
// running alongside the fresh instance; that is the documented semantics of
// forcing a new instance regardless of current state.
func (c *Controller) restart(class registry.MonitorClass, instrument string) {
	c.launch(class, instrument)
}

// launch spawns the monitor, re-observes for the new PID, and serves the
// inter-launch delay whether or not the spawn worked.
func (c *Controller) launch(class registry.MonitorClass, instrument string) {
	defer c.Sleep(c.Delay)

	if err := c.Launcher.Launch(class, instrument); err != nil {
		// spawn-time failure, distinct from "spawned but not yet visible"
		c.log.Error().Err(err).Str("instrument", instrument).Str("class", string(class)).
			Msg("monitor spawn failed")
		fmt.Fprintf(c.Out, "%s %s monitor failed to spawn: %v\n", instrument, class, err)
		return
	}

	pids, err := c.observe(class, instrument)
	if err != nil {
		return
	}
	if len(pids) > 0 {
		fmt.Fprintf(c.Out, "%s %s monitor started (pid %d)\n", instrument, class, pids[0])
	} else {
		fmt.Fprintf(c.Out, "%s %s monitor started, not yet visible in process table\n",
			instrument, class)
	}
}

// stop signals the single observed PID. With no PID it is a no-op; with more
// than one it refuses to guess which process to kill and leaves resolution to
// the operator.
func (c *Controller) stop(class registry.MonitorClass, instrument string) {
	pids, err := c.observe(class, instrument)
	if err != nil {
		return
	}
	switch len(pids) {
	case 0:
		fmt.Fprintf(c.Out, "%s %s monitor not running\n", instrument, class)
	case 1:
		if err := c.Signaler.Terminate(pids[0]); err != nil {
			c.log.Error().Err(err).Str("instrument", instrument).Int32("pid", pids[0]).
				Msg("terminate failed")
			fmt.Fprintf(c.Out, "%s %s monitor: failed to signal pid %d: %v\n",
				instrument, class, pids[0], err)
			return
		}
		fmt.Fprintf(c.Out, "%s %s monitor stopped (sent SIGTERM to pid %d)\n",
			instrument, class, pids[0])
	default:
		c.log.Warn().Str("instrument", instrument).Str("class", string(class)).
			Ints32("pids", pids).Msg("ambiguous process set, refusing to signal")
		fmt.Fprintf(c.Out, "%s %s monitor: found %d matching processes %v, refusing to signal; resolve manually\n",
			instrument, class, len(pids), pids)
	}
}

// observe takes a fresh point-in-time process observation for the pair.
func (c *Controller) observe(class registry.MonitorClass, instrument string) ([]int32, error) {
	pids, err := c.Finder.Find(class, instrument)
	if err != nil {
		c.log.Error().Err(err).Str("instrument", instrument).Str("class", string(class)).
			Msg("process table query failed")
		fmt.Fprintf(c.Out, "%s %s monitor: process table query failed: %v\n",
			instrument, class, err)
		return nil, err
	}
	return pids, nil
}
