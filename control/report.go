package control

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/koa-ops/monctl/procfind"
	"github.com/koa-ops/monctl/registry"
)

// ClassReport reconciles expected against observed for one monitor class.
// Running comes from a class-wide scan, independent of any instrument.
type ClassReport struct {
	Class        registry.MonitorClass `json:"class"`
	BaseCount    int                   `json:"base_count"`
	Base         []string              `json:"base"`
	RunCount     int                   `json:"run_count"`
	Run          []string              `json:"run"`
	RunningCount int                   `json:"running_count"`
	Running      []procfind.Entry      `json:"running"`
}

// Report is the full end-of-invocation status.
type Report struct {
	Role    registry.ServerRole `json:"role"`
	Classes []ClassReport       `json:"classes"`
	Note    string              `json:"note,omitempty"`
}

// transientNote flags the snapshot taken right after launches: a monitor may
// not have entered the process table yet.
const transientNote = "counts may be transiently low right after a launch; re-check status in a few seconds"

var headerStyle = lipgloss.NewStyle().Bold(true)

// BuildReport snapshots the process table once per class and assembles the
// expected-vs-running view for the role.
func (c *Controller) BuildReport(role registry.ServerRole) (*Report, error) {
	report := &Report{Role: role}
	for _, class := range registry.Classes {
		entries, err := c.Finder.Scan(class)
		if err != nil {
			return nil, fmt.Errorf("control: %s class scan: %w", class, err)
		}
		base := c.Registry.Base(role, class)
		run := c.Registry.Run(role, class)
		report.Classes = append(report.Classes, ClassReport{
			Class:        class,
			BaseCount:    len(base),
			Base:         base,
			RunCount:     len(run),
			Run:          run,
			RunningCount: len(entries),
			Running:      entries,
		})
	}
	return report, nil
}

// report renders the closing status. It runs after every command; the
// reporter only reads, never acts.
func (c *Controller) report(cmd Command, role registry.ServerRole) error {
	report, err := c.BuildReport(role)
	if err != nil {
		return err
	}
	if cmd == Start || cmd == Restart {
		report.Note = transientNote
	}

	if c.JSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.Out, string(data))
		return nil
	}

	for _, cr := range report.Classes {
		fmt.Fprintln(c.Out, headerStyle.Render(fmt.Sprintf("=== %s %s monitors ===", role, cr.Class)))
		fmt.Fprintf(c.Out, "possible (%d): %s\n", cr.BaseCount, strings.Join(cr.Base, " "))
		fmt.Fprintf(c.Out, "targeted (%d): %s\n", cr.RunCount, strings.Join(cr.Run, " "))
		fmt.Fprintf(c.Out, "running  (%d):\n", cr.RunningCount)
		for _, e := range cr.Running {
			fmt.Fprintf(c.Out, "  %6d  %s\n", e.PID, e.Cmdline)
		}
	}

	if report.Note != "" {
		fmt.Fprintln(c.Out, "note: "+report.Note)
	}
	return nil
}
