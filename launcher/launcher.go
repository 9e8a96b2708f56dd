// Package launcher spawns monitor daemons and signals running ones. Launch
// is fire-and-forget: the child is fully detached and the controller keeps no
// handle to it; later liveness questions go back to the process table.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/google/shlex"

	"github.com/koa-ops/monctl/registry"
)

// Launcher starts the monitor entry point for one (class, instrument) pair.
// A nil error means the process was spawned; it says nothing about whether
// the monitor stays up.
type Launcher interface {
	Launch(class registry.MonitorClass, instrument string) error
}

// Signaler delivers a graceful termination signal to a single PID. There is
// no escalation and no wait: the operator re-runs status to confirm.
type Signaler interface {
	Terminate(pid int32) error
}

//
// ---------- Monitor launcher ----------

// MonitorLauncher builds the monitor command line from the configured entry
// points and appends the child's output to a per-instrument log file.
type MonitorLauncher struct {
	monitorCmd    string
	monitorDRPCmd string
	logDir        string
}

var _ Launcher = (*MonitorLauncher)(nil)

func New(monitorCmd, monitorDRPCmd, logDir string) *MonitorLauncher {
	return &MonitorLauncher{
		monitorCmd:    monitorCmd,
		monitorDRPCmd: monitorDRPCmd,
		logDir:        logDir,
	}
}

// CommandLine returns the argv used to start the monitor for the pair.
func (l *MonitorLauncher) CommandLine(class registry.MonitorClass, instrument string) ([]string, error) {
	cmd := l.monitorCmd
	if class == registry.ClassDRP {
		cmd = l.monitorDRPCmd
	}
	parts, err := shlex.Split(cmd)
	if err != nil {
		return nil, fmt.Errorf("launcher: bad %s monitor command %q: %w", class, cmd, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("launcher: empty %s monitor command", class)
	}
	return append(parts, instrument), nil
}

// LogPath returns the append-only log location for the pair.
func (l *MonitorLauncher) LogPath(class registry.MonitorClass, instrument string) string {
	name := "monitor_" + instrument + ".log"
	if class == registry.ClassDRP {
		name = "monitor_drp_" + instrument + ".log"
	}
	return filepath.Join(l.logDir, name)
}

// Launch starts the monitor detached from the controller's lifetime. The
// child gets its own session so it survives the controller exiting, and its
// stdout/stderr append to the instrument's log file.
func (l *MonitorLauncher) Launch(class registry.MonitorClass, instrument string) error {
	argv, err := l.CommandLine(class, instrument)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(l.logDir, 0755); err != nil {
		return fmt.Errorf("launcher: create log dir %s: %w", l.logDir, err)
	}
	logPath := l.LogPath(class, instrument)
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("launcher: open %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launcher: spawn %s monitor for %s: %w", class, instrument, err)
	}

	// Drop the handle; the process table is the only way back to this child.
	return cmd.Process.Release()
}

//
// ---------- Signaler ----------

// TermSignaler sends SIGTERM, once, to exactly one PID.
type TermSignaler struct{}

var _ Signaler = TermSignaler{}

func (TermSignaler) Terminate(pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("launcher: bad pid %d", pid)
	}
	if err := syscall.Kill(int(pid), syscall.SIGTERM); err != nil {
		return fmt.Errorf("launcher: terminate pid %d: %w", pid, err)
	}
	return nil
}
