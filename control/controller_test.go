package control_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/koa-ops/monctl/control"
	"github.com/koa-ops/monctl/procfind"
	"github.com/koa-ops/monctl/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// ---------- Fakes ----------

type fakeFinder struct {
	pids    map[string][]int32 // "class/instrument" -> observed pids
	scans   map[registry.MonitorClass][]procfind.Entry
	findErr error
	finds   []string
}

func key(class registry.MonitorClass, instrument string) string {
	return fmt.Sprintf("%s/%s", class, instrument)
}

func (f *fakeFinder) Find(class registry.MonitorClass, instrument string) ([]int32, error) {
	f.finds = append(f.finds, key(class, instrument))
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.pids[key(class, instrument)], nil
}

func (f *fakeFinder) Scan(class registry.MonitorClass) ([]procfind.Entry, error) {
	return f.scans[class], nil
}

type fakeLauncher struct {
	launches []string
	err      error
	// onLaunch lets a test make the launched monitor visible to the finder
	onLaunch func(class registry.MonitorClass, instrument string)
}

func (l *fakeLauncher) Launch(class registry.MonitorClass, instrument string) error {
	l.launches = append(l.launches, key(class, instrument))
	if l.err != nil {
		return l.err
	}
	if l.onLaunch != nil {
		l.onLaunch(class, instrument)
	}
	return nil
}

type fakeSignaler struct {
	signaled []int32
	err      error
}

func (s *fakeSignaler) Terminate(pid int32) error {
	s.signaled = append(s.signaled, pid)
	return s.err
}

//
// ---------- Harness ----------

type harness struct {
	ctl      *control.Controller
	finder   *fakeFinder
	launcher *fakeLauncher
	signaler *fakeSignaler
	out      *bytes.Buffer
	slept    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := registry.New(
		map[string]registry.ServerRole{
			"vm-koaserver1": registry.RoleServer1,
			"vm-koaserver2": registry.RoleServer2,
			"vm-koadev":     registry.RoleDev,
		},
		map[registry.ServerRole]registry.RoleLists{
			registry.RoleServer1: {
				RawBase: []string{"hires", "mosfire"},
				DRPBase: []string{"hires"},
			},
			registry.RoleServer2: {
				RawBase: []string{"kcwi_red", "nires"},
				DRPBase: []string{"kcwi_red"},
			},
		})
	require.NoError(t, err)

	h := &harness{
		finder:   &fakeFinder{pids: map[string][]int32{}, scans: map[registry.MonitorClass][]procfind.Entry{}},
		launcher: &fakeLauncher{},
		signaler: &fakeSignaler{},
		out:      &bytes.Buffer{},
	}
	h.ctl = control.New(reg, h.finder, h.launcher, h.signaler, 5*time.Second, h.out)
	h.ctl.Sleep = func(d time.Duration) { h.slept = append(h.slept, d) }
	return h
}

//
// ---------- Start ----------

func TestStartSkipsRunningMonitor(t *testing.T) {
	h := newHarness(t)
	h.finder.pids[key(registry.ClassRaw, "hires")] = []int32{1234}

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))

	// hires raw was not launched; everything else in the run lists was
	assert.NotContains(t, h.launcher.launches, "raw/hires")
	assert.Contains(t, h.launcher.launches, "raw/mosfire")
	assert.Contains(t, h.launcher.launches, "drp/hires")
	assert.Contains(t, h.out.String(), "hires raw monitor already running (pid 1234), not started")

	// one delay per launch attempt, none for the skip
	assert.Len(t, h.slept, 2)
	for _, d := range h.slept {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	// once launched, the monitor becomes observable
	h.launcher.onLaunch = func(class registry.MonitorClass, instrument string) {
		h.finder.pids[key(class, instrument)] = []int32{4321}
	}

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))
	first := len(h.launcher.launches)
	assert.Equal(t, 3, first) // raw: hires, mosfire; drp: hires

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))
	assert.Equal(t, first, len(h.launcher.launches), "second start must not launch again")
	assert.Contains(t, h.out.String(), "already running (pid 4321)")
}

func TestStartReportsNewPid(t *testing.T) {
	h := newHarness(t)
	h.launcher.onLaunch = func(class registry.MonitorClass, instrument string) {
		h.finder.pids[key(class, instrument)] = []int32{777}
	}

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))
	assert.Contains(t, h.out.String(), "hires raw monitor started (pid 777)")
}

func TestStartSpawnFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.launcher.err = errors.New("no such interpreter")

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))

	out := h.out.String()
	assert.Contains(t, out, "hires raw monitor failed to spawn")
	assert.Contains(t, out, "mosfire raw monitor failed to spawn")
	// the delay still applies after failed launch attempts
	assert.Len(t, h.slept, 3)
}

func TestStartNotYetVisible(t *testing.T) {
	h := newHarness(t)
	// launch succeeds but the child never shows up in the table

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))
	assert.Contains(t, h.out.String(), "hires raw monitor started, not yet visible in process table")
}

//
// ---------- Restart ----------

func TestRestartLaunchesUnconditionally(t *testing.T) {
	h := newHarness(t)
	h.finder.pids[key(registry.ClassRaw, "hires")] = []int32{1234}

	require.NoError(t, h.ctl.Run(control.Restart, registry.RoleServer1))
	require.NoError(t, h.ctl.Run(control.Restart, registry.RoleServer1))

	// two invocations, three run-list entries each, no pre-checks
	assert.Len(t, h.launcher.launches, 6)
	assert.Len(t, h.slept, 6)
}

//
// ---------- Stop ----------

func TestStopNotRunning(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctl.Run(control.Stop, registry.RoleServer1))
	assert.Empty(t, h.signaler.signaled)
	assert.Contains(t, h.out.String(), "hires raw monitor not running")
}

func TestStopSingleCandidate(t *testing.T) {
	h := newHarness(t)
	h.finder.pids[key(registry.ClassRaw, "hires")] = []int32{555}

	require.NoError(t, h.ctl.Run(control.Stop, registry.RoleServer1))
	assert.Equal(t, []int32{555}, h.signaler.signaled)
	assert.Contains(t, h.out.String(), "hires raw monitor stopped (sent SIGTERM to pid 555)")
}

func TestStopRefusesAmbiguousSet(t *testing.T) {
	h := newHarness(t)
	h.finder.pids[key(registry.ClassRaw, "kcwi_red")] = []int32{555, 556}
	h.finder.pids[key(registry.ClassRaw, "nires")] = []int32{600}

	require.NoError(t, h.ctl.Run(control.Stop, registry.RoleServer2))

	// nires is still processed; kcwi_red is refused
	assert.Equal(t, []int32{600}, h.signaler.signaled)
	out := h.out.String()
	assert.Contains(t, out, "kcwi_red raw monitor: found 2 matching processes")
	assert.Contains(t, out, "resolve manually")
}

func TestStopNeverActsOnStaleObservation(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctl.Run(control.Stop, registry.RoleServer1))
	// one fresh Find per (instrument, class) run-list entry
	assert.Equal(t, []string{"raw/hires", "raw/mosfire", "drp/hires"}, h.finder.finds)
}

//
// ---------- Ordering and errors ----------

func TestRawClassPassCompletesBeforeDRP(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctl.Run(control.Restart, registry.RoleServer1))
	assert.Equal(t, []string{"raw/hires", "raw/mosfire", "drp/hires"}, h.launcher.launches)
}

func TestCombinedRoleTargetsBothLeaves(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctl.Run(control.Restart, registry.RoleDev))
	assert.Equal(t, []string{
		"raw/hires", "raw/mosfire", "raw/kcwi_red", "raw/nires",
		"drp/hires", "drp/kcwi_red",
	}, h.launcher.launches)
}

func TestFinderErrorSkipsInstrument(t *testing.T) {
	h := newHarness(t)
	h.finder.findErr = errors.New("proc table unreadable")

	require.NoError(t, h.ctl.Run(control.Start, registry.RoleServer1))
	assert.Empty(t, h.launcher.launches)
	assert.Contains(t, h.out.String(), "process table query failed")
}

func TestStatusTakesNoAction(t *testing.T) {
	h := newHarness(t)
	h.finder.pids[key(registry.ClassRaw, "hires")] = []int32{1}

	require.NoError(t, h.ctl.Run(control.Status, registry.RoleServer1))
	assert.Empty(t, h.launcher.launches)
	assert.Empty(t, h.signaler.signaled)
	assert.Empty(t, h.slept)
	// no per-instrument observations either; only the class-wide report scans
	assert.Empty(t, h.finder.finds)
}
