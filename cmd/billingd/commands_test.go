package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "billingd dev")
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "sweep", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	serve, _, _ := root.Find([]string{"serve"})
	assert.NotNil(t, serve.Flags().Lookup("migrate"))
}

func TestSweepCommand_MemoryBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("LOCK_BACKEND", "memory")
	t.Setenv("PAYMENT_PROVIDER", "none")

	out, err := run(t, "sweep")
	require.NoError(t, err)

	var report subscription.SweepReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Scanned)
	assert.Zero(t, report.Failed)
}

func TestMissingEnvFile(t *testing.T) {
	_, err := run(t, "--env-file", "does-not-exist.env", "version")
	assert.Error(t, err)
}
