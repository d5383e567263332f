package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with fresh flag values.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, "", args...)
}

func runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores defaults, since the command tree is shared by every test.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			_ = slice.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func seed(t *testing.T, dir string, flowID, instanceID string) {
	t.Helper()
	p := persistence.New(file.New(dir))
	state := &domain.FlowState{
		StepID:  "a",
		Context: domain.Context{"k": "v"},
		Status:  domain.StatusActive,
		Path:    []domain.PathEntry{{StepID: "a"}},
	}
	_, err := p.Save(context.Background(), flowID, state, ports.PersistOptions{InstanceID: instanceID, Version: "1"})
	require.NoError(t, err)
}

func TestKey(t *testing.T) {
	out, err := run(t, "key", "onboarding", "--instance", "task 1")
	require.NoError(t, err)
	assert.Equal(t, keyspace.Key("onboarding", "task 1", "")+"\n", out)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte("id: good\nstart: a\nsteps:\n  a:\n    next: b\n  b: {}\n  orphan: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":"bad","start":"missing","steps":{"a":{}}}`), 0o644))

	out, err := run(t, "validate", good, "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, `flow "good" is valid (3 steps)`)
	assert.Contains(t, out, "step_id=orphan")

	_, err = run(t, "validate", good, bad, "--log-level", "warn")
	assert.ErrorContains(t, err, "1 of 2 definitions are invalid")
}

func TestSnapshotCommands(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "onboarding", "task-1")
	seed(t, dir, "onboarding", "task-2")
	seed(t, dir, "billing", "")

	out, err := run(t, "snapshot", "ls", "onboarding", "--store", "file", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "instance=task-1")
	assert.Contains(t, out, "instance=task-2")
	assert.NotContains(t, out, "flow=billing")

	out, err = run(t, "snapshot", "inspect", "onboarding", "--store", "file", "--dir", dir, "--instance", "task-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"stepId": "a"`)
	assert.Contains(t, out, `"instanceId": "task-1"`)

	_, err = run(t, "snapshot", "inspect", "missing", "--store", "file", "--dir", dir)
	assert.ErrorContains(t, err, "no snapshot stored")

	_, err = run(t, "snapshot", "rm", "onboarding", "--store", "file", "--dir", dir, "--all")
	require.NoError(t, err)

	keys, err := file.New(dir).Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{keyspace.Key("billing", "", "")}, keys)
}

func TestUnknownStore(t *testing.T) {
	_, err := run(t, "snapshot", "ls", "--store", "etcd")
	assert.ErrorContains(t, err, `unknown store "etcd"`)
}

func writeDefinition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "survey.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: survey\nstart: a\nsteps:\n  a:\n    next: b\n  b:\n    next: [c, d]\n  c: {}\n  d: {}\n"), 0o644))
	return path
}

func TestRun_ResumesAcrossSessions(t *testing.T) {
	def := writeDefinition(t)
	dir := t.TempDir()
	common := []string{"run", def, "--store", "file", "--dir", dir, "--instance", "task-1", "--autosave"}

	_, err := runWithInput(t, "next email=ada@example.com\nquit\n", common...)
	require.NoError(t, err)

	out, err := runWithInput(t, "next d\nquit\n", common...)
	require.NoError(t, err)
	assert.Contains(t, out, `at step "b"`)

	out, err = run(t, "snapshot", "inspect", "survey", "--store", "file", "--dir", dir, "--instance", "task-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"stepId": "d"`)
	assert.Contains(t, out, "ada@example.com")
}

func TestRun_MasksContext(t *testing.T) {
	def := writeDefinition(t)
	dir := t.TempDir()

	_, err := runWithInput(t, "set email=ada@example.com\nsave\nquit\n",
		"run", def, "--store", "file", "--dir", dir, "--instance", "masked", "--mask", "^email$")
	require.NoError(t, err)

	out, err := run(t, "snapshot", "inspect", "survey", "--store", "file", "--dir", dir, "--instance", "masked")
	require.NoError(t, err)
	assert.NotContains(t, out, "ada@example.com")
	assert.Contains(t, out, `"***"`)
}

func TestGraph(t *testing.T) {
	def := writeDefinition(t)
	out, err := run(t, "graph", def)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "a --> b")
	assert.Contains(t, out, "b -.-> d")
}
