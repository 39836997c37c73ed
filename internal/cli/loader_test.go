package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tuplespace/internal/term"
)

// writeCUE writes one .cue file into dir.
func writeCUE(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadInstalls_SingleHandler(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "handlers.cue", `
install: handle_orders: {
	channels: ["orders"]
	patterns: ["{kind: \"order\", total: int}"]
	tag:      "handle-order"
}
`)

	installs, err := LoadInstalls(dir)
	require.NoError(t, err)
	require.Len(t, installs, 1)

	ins := installs[0]
	assert.Equal(t, []term.Channel{"orders"}, ins.Channels)
	assert.Equal(t, []term.Pattern{`{kind: "order", total: int}`}, ins.Patterns)
	assert.Equal(t, "handle-order", ins.Continuation.Tag)
}

func TestLoadInstalls_JoinedChannels(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "handlers.cue", `
install: settle: {
	channels: ["payments", "invoices"]
	patterns: ["_", "_"]
	tag:      "settle"
}
`)

	installs, err := LoadInstalls(dir)
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, []term.Channel{"payments", "invoices"}, installs[0].Channels)
}

func TestLoadInstalls_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "a.cue", `
install: first: {
	channels: ["a"]
	patterns: ["_"]
	tag:      "first"
}
`)
	writeCUE(t, dir, "b.cue", `
install: second: {
	channels: ["b"]
	patterns: ["_"]
	tag:      "second"
}
`)

	installs, err := LoadInstalls(dir)
	require.NoError(t, err)
	assert.Len(t, installs, 2)
}

func TestLoadInstalls_LengthMismatch(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
install: bad: {
	channels: ["a", "b"]
	patterns: ["_"]
	tag:      "bad"
}
`)

	_, err := LoadInstalls(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 channels but 1 patterns")
}

func TestLoadInstalls_MissingTag(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
install: bad: {
	channels: ["a"]
	patterns: ["_"]
}
`)

	_, err := LoadInstalls(dir)
	assert.Error(t, err)
}

func TestLoadInstalls_MissingDirectory(t *testing.T) {
	_, err := LoadInstalls(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadInstalls_NoCUEFiles(t *testing.T) {
	_, err := LoadInstalls(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}

func TestFindCUEFiles_SkipsSubdirsAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "one.cue", "x: 1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "one.cue"), files[0])
}
