package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "eKV v"+Version+"\n", out)
}

func TestCommandsAgainstStore(t *testing.T) {
	dir := t.TempDir()
	flags := []string{"--data-dir", dir, "--engine", "maple", "--log-level", "error"}

	out, err := execute(t, append([]string{"demo", "--steps", "1"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "spawned 3 entities")

	out, err = execute(t, append([]string{"stats"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "demo.Position")
	assert.Contains(t, out, "2 records")

	out, err = execute(t, append([]string{"inspect", "--tag", "demo.Name", "--filter", `value.Value == "ada"`}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `{"Value":"ada"}`)
	assert.Contains(t, out, "1 records")

	out, err = execute(t, append([]string{"purge", "--tag", "demo.Name"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "purged 2 records of demo.Name\n", out)

	out, err = execute(t, append([]string{"inspect", "--tag", "demo.Name", "--format", "json"}, flags...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestInvalidEngine(t *testing.T) {
	_, err := execute(t, "stats", "--data-dir", t.TempDir(), "--engine", "rocksdb")
	assert.Error(t, err)
}
