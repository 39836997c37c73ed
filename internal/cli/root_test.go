package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args against a buffer and
// returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// testStoreArgs returns the flags pointing every command at a per-test db.
func testStoreArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--store", filepath.Join(t.TempDir(), "space.db")}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := runCommand(t, "--format", "xml", "checkpoint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"produce", "consume", "install", "checkpoint", "reset", "clear", "show"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestProduceCommand_InvalidPayload(t *testing.T) {
	args := append([]string{"produce", "ch1", "{not json"}, testStoreArgs(t)...)
	_, err := runCommand(t, args...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProduceCommand_StoresDatum(t *testing.T) {
	store := testStoreArgs(t)

	out, err := runCommand(t, append([]string{"produce", "ch1", "42"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "stored on ch1")

	// The state survives across invocations of the same store file.
	out, err = runCommand(t, append([]string{"show"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "ch1")
	assert.Contains(t, out, "datum 42")
}

func TestConsumeCommand_FiresAgainstStoredDatum(t *testing.T) {
	store := testStoreArgs(t)

	_, err := runCommand(t, append([]string{"produce", "ch1", "42"}, store...)...)
	require.NoError(t, err)

	out, err := runCommand(t, append([]string{
		"consume", "ch1", "--pattern", "int", "--tag", "got-int",
	}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "fired got-int")
	assert.Contains(t, out, "ch1: 42")
}

func TestConsumeCommand_WaitsWhenNoMatch(t *testing.T) {
	store := testStoreArgs(t)

	out, err := runCommand(t, append([]string{
		"consume", "ch1", "--pattern", "int", "--tag", "waiter",
	}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "waiting as waiter")

	out, err = runCommand(t, append([]string{"produce", "ch1", "7"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "fired waiter")
}

func TestConsumeCommand_PatternCountMismatch(t *testing.T) {
	args := append([]string{
		"consume", "a", "b", "--pattern", "int", "--tag", "k",
	}, testStoreArgs(t)...)
	_, err := runCommand(t, args...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckpointAndResetRoundTrip(t *testing.T) {
	store := testStoreArgs(t)

	_, err := runCommand(t, append([]string{"produce", "ch1", "1"}, store...)...)
	require.NoError(t, err)

	root, err := runCommand(t, append([]string{"checkpoint"}, store...)...)
	require.NoError(t, err)
	root = trimOutput(root)
	require.NotEmpty(t, root)

	// Drain, then restore.
	_, err = runCommand(t, append([]string{
		"consume", "ch1", "--pattern", "_", "--tag", "drain",
	}, store...)...)
	require.NoError(t, err)

	_, err = runCommand(t, append([]string{"reset", root}, store...)...)
	require.NoError(t, err)

	out, err := runCommand(t, append([]string{"show"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "datum 1")
}

func TestResetCommand_UnknownRoot(t *testing.T) {
	args := append([]string{"reset", "deadbeef"}, testStoreArgs(t)...)
	_, err := runCommand(t, args...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestClearCommand_EmptiesState(t *testing.T) {
	store := testStoreArgs(t)

	_, err := runCommand(t, append([]string{"produce", "ch1", "1", "--persist"}, store...)...)
	require.NoError(t, err)

	_, err = runCommand(t, append([]string{"clear"}, store...)...)
	require.NoError(t, err)

	out, err := runCommand(t, append([]string{"show"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "(empty)")
}

func TestShowCommand_UnderRoot(t *testing.T) {
	store := testStoreArgs(t)

	_, err := runCommand(t, append([]string{"produce", "ch1", "42"}, store...)...)
	require.NoError(t, err)
	root, err := runCommand(t, append([]string{"checkpoint"}, store...)...)
	require.NoError(t, err)
	root = trimOutput(root)

	out, err := runCommand(t, append([]string{"show", "ch1", "--root", root}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "datum 42")

	// --root without channels is a usage problem.
	_, err = runCommand(t, append([]string{"show", "--root", root}, store...)...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJSONOutput(t *testing.T) {
	store := testStoreArgs(t)

	out, err := runCommand(t, append([]string{
		"--format", "json", "produce", "ch1", "42",
	}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"fired":false`)
}

func trimOutput(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
