package cmd_mon

import (
	"bytes"
	"testing"

	"github.com/koa-ops/monctl/control"
	"github.com/koa-ops/monctl/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatch struct {
	cmd  control.Command
	role string
}

// execCLI runs the root command with args, capturing dispatches instead of
// touching the host.
func execCLI(t *testing.T, args ...string) ([]dispatch, error) {
	t.Helper()

	var calls []dispatch
	orig := run
	run = func(cmd control.Command, roleToken string) error {
		calls = append(calls, dispatch{cmd, roleToken})
		return nil
	}
	t.Cleanup(func() { run = orig })

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return calls, err
}

func TestBareInvocationIsStatus(t *testing.T) {
	calls, err := execCLI(t)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, control.Status, calls[0].cmd)
	assert.Equal(t, "", calls[0].role)
}

func TestCommandDispatch(t *testing.T) {
	for token, want := range map[string]control.Command{
		"status":  control.Status,
		"start":   control.Start,
		"stop":    control.Stop,
		"restart": control.Restart,
	} {
		calls, err := execCLI(t, token)
		require.NoError(t, err, token)
		require.Len(t, calls, 1, token)
		assert.Equal(t, want, calls[0].cmd, token)
	}
}

func TestRoleOverrideToken(t *testing.T) {
	calls, err := execCLI(t, "restart", "koaserver1")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, control.Restart, calls[0].cmd)
	assert.Equal(t, "koaserver1", calls[0].role)
}

func TestEffectiveRoleHonoursOverrideOnCombinedHost(t *testing.T) {
	role, ignored, err := effectiveRole(registry.RoleDev, "koaserver2")
	require.NoError(t, err)
	assert.False(t, ignored)
	assert.Equal(t, registry.RoleServer2, role)
}

func TestEffectiveRoleIgnoresOverrideOnLeafHost(t *testing.T) {
	role, ignored, err := effectiveRole(registry.RoleServer1, "koaserver2")
	require.NoError(t, err)
	assert.True(t, ignored)
	assert.Equal(t, registry.RoleServer1, role)
}

func TestEffectiveRoleWithoutToken(t *testing.T) {
	role, ignored, err := effectiveRole(registry.RoleServer2, "")
	require.NoError(t, err)
	assert.False(t, ignored)
	assert.Equal(t, registry.RoleServer2, role)
}

func TestEffectiveRoleRejectsUnknownToken(t *testing.T) {
	// a bad token is fatal even where it would be ignored
	_, _, err := effectiveRole(registry.RoleServer1, "koaserver9")
	assert.Error(t, err)

	_, _, err = effectiveRole(registry.RoleDev, "koadev")
	assert.Error(t, err)
}

func TestUnknownCommandFailsWithoutDispatch(t *testing.T) {
	calls, err := execCLI(t, "reload")
	assert.Error(t, err)
	assert.Empty(t, calls)
}

func TestTooManyArgumentsFailsWithoutDispatch(t *testing.T) {
	calls, err := execCLI(t, "start", "koaserver1", "extra")
	assert.Error(t, err)
	assert.Empty(t, calls)
}
