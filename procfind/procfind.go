// Package procfind answers one question: which live processes are running a
// given monitor class, optionally narrowed to one instrument. The process
// table is the controller's only source of truth on liveness, so results are
// never cached; callers re-query immediately before every decision.
package procfind

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/koa-ops/monctl/registry"
)

// Entry is one matching process from a class-wide scan.
type Entry struct {
	PID     int32  `json:"pid"`
	Cmdline string `json:"cmdline"`
}

// Finder locates monitor processes by class signature and instrument token.
type Finder interface {
	// Find returns the PIDs whose command line carries both the class
	// signature and the instrument token.
	Find(class registry.MonitorClass, instrument string) ([]int32, error)

	// Scan returns every process carrying the class signature, regardless of
	// instrument. Used by the status report.
	Scan(class registry.MonitorClass) ([]Entry, error)
}

//
// ---------- gopsutil implementation ----------

// TableFinder enumerates the live process table via gopsutil. The class
// signature is the base name of the configured monitor script, so deployed
// entry points remain discoverable without change.
type TableFinder struct {
	sigs map[registry.MonitorClass]string
	self int32
}

var _ Finder = (*TableFinder)(nil)

// New derives the two class signatures from the configured monitor command
// lines (the script is the last token of each).
func New(monitorCmd, monitorDRPCmd string) (*TableFinder, error) {
	rawSig, err := Signature(monitorCmd)
	if err != nil {
		return nil, fmt.Errorf("procfind: monitor_cmd: %w", err)
	}
	drpSig, err := Signature(monitorDRPCmd)
	if err != nil {
		return nil, fmt.Errorf("procfind: monitor_drp_cmd: %w", err)
	}
	if rawSig == drpSig {
		return nil, fmt.Errorf("procfind: raw and DRP signatures both resolve to %q", rawSig)
	}
	return &TableFinder{
		sigs: map[registry.MonitorClass]string{
			registry.ClassRaw: rawSig,
			registry.ClassDRP: drpSig,
		},
		self: int32(os.Getpid()),
	}, nil
}

// Signature extracts the process-table signature from a monitor command line.
func Signature(cmd string) (string, error) {
	parts, err := shlex.Split(cmd)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty command line")
	}
	return filepath.Base(parts[len(parts)-1]), nil
}

func (f *TableFinder) Find(class registry.MonitorClass, instrument string) ([]int32, error) {
	sig := f.sigs[class]
	var pids []int32
	err := f.walk(func(pid int32, argv []string) {
		if MatchesClass(argv, sig) && MatchesInstrument(argv, instrument) {
			pids = append(pids, pid)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

func (f *TableFinder) Scan(class registry.MonitorClass) ([]Entry, error) {
	sig := f.sigs[class]
	var entries []Entry
	err := f.walk(func(pid int32, argv []string) {
		if MatchesClass(argv, sig) {
			entries = append(entries, Entry{PID: pid, Cmdline: strings.Join(argv, " ")})
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	return entries, nil
}

// walk visits every live process's argv. Processes that exit mid-scan, or
// whose cmdline is unreadable, are skipped.
func (f *TableFinder) walk(visit func(pid int32, argv []string)) error {
	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("procfind: enumerate processes: %w", err)
	}
	for _, p := range procs {
		if p.Pid == f.self {
			continue
		}
		argv, err := p.CmdlineSlice()
		if err != nil || len(argv) == 0 {
			continue
		}
		visit(p.Pid, argv)
	}
	return nil
}

//
// ---------- Matching ----------

// MatchesClass reports whether some argv token names the class script. Tokens
// are compared by base name so absolute and relative invocations both match.
func MatchesClass(argv []string, signature string) bool {
	for _, tok := range argv {
		if filepath.Base(tok) == signature {
			return true
		}
	}
	return false
}

// MatchesInstrument reports whether the instrument appears as its own argv
// token. Substring matches are not enough: "kcwi" must not match "kcwi_red".
func MatchesInstrument(argv []string, instrument string) bool {
	for _, tok := range argv {
		if tok == instrument {
			return true
		}
	}
	return false
}
