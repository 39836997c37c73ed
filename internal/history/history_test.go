package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tuplespace/internal/store"
	"github.com/roach88/tuplespace/internal/term"
)

func createTestHistory(t *testing.T) *Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h, err := New(s)
	require.NoError(t, err)
	return h
}

func testLeaves() []term.GNAT {
	return []term.GNAT{
		{
			Channels: []term.Channel{"ch1"},
			Row:      term.Row{Data: []term.Datum{{Payload: term.Int(42)}}},
		},
		{
			Channels: []term.Channel{"ch1", "ch2"},
			Row: term.Row{Continuations: []term.WaitingContinuation{{
				Patterns:     []term.Pattern{"int", "string"},
				Continuation: term.Continuation{Tag: "C"},
				Persist:      true,
				ConsumeID:    "cid",
			}}},
		},
	}
}

func TestCommit_ContentAddressedAndIdempotent(t *testing.T) {
	h := createTestHistory(t)
	ctx := context.Background()

	root1, err := h.Commit(ctx, testLeaves())
	require.NoError(t, err)

	root2, err := h.Commit(ctx, testLeaves())
	require.NoError(t, err)
	assert.Equal(t, root1, root2, "same leaves commit to the same root")

	other, err := h.Commit(ctx, testLeaves()[:1])
	require.NoError(t, err)
	assert.NotEqual(t, root1, other)
}

func TestCommit_SkipsEmptyRows(t *testing.T) {
	h := createTestHistory(t)
	ctx := context.Background()

	withEmpty := append(testLeaves(), term.GNAT{Channels: []term.Channel{"ghost"}})
	root1, err := h.Commit(ctx, withEmpty)
	require.NoError(t, err)

	root2, err := h.Commit(ctx, testLeaves())
	require.NoError(t, err)
	assert.Equal(t, root1, root2, "empty rows are equivalent to absence")
}

func TestValidateRoot(t *testing.T) {
	h := createTestHistory(t)
	ctx := context.Background()

	ok, err := h.ValidateRoot(ctx, h.EmptyRoot())
	require.NoError(t, err)
	assert.True(t, ok, "empty root is always valid")

	ok, err = h.ValidateRoot(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	root, err := h.Commit(ctx, testLeaves())
	require.NoError(t, err)
	ok, err = h.ValidateRoot(ctx, root)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaves_RoundTrip(t *testing.T) {
	h := createTestHistory(t)
	ctx := context.Background()

	committed := testLeaves()
	root, err := h.Commit(ctx, committed)
	require.NoError(t, err)

	restored, err := h.Leaves(ctx, root)
	require.NoError(t, err)
	require.Len(t, restored, len(committed))

	byKey := make(map[string]term.GNAT)
	for _, g := range restored {
		byKey[term.GroupKey(g.Channels)] = g
	}
	for _, want := range committed {
		got, ok := byKey[term.GroupKey(want.Channels)]
		require.True(t, ok, "missing leaf for %v", want.Channels)
		assert.Equal(t, want, got)
	}
}

func TestLeaves_UnknownRoot(t *testing.T) {
	h := createTestHistory(t)

	_, err := h.Leaves(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRoot))
}

func TestLeaves_EmptyRoot(t *testing.T) {
	h := createTestHistory(t)

	gnats, err := h.Leaves(context.Background(), h.EmptyRoot())
	require.NoError(t, err)
	assert.Empty(t, gnats)
}

func TestLeaf_PresentAndAbsent(t *testing.T) {
	h := createTestHistory(t)
	ctx := context.Background()

	root, err := h.Commit(ctx, testLeaves())
	require.NoError(t, err)

	g, err := h.Leaf(ctx, root, []term.Channel{"ch1"})
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, term.Int(42), g.Row.Data[0].Payload)

	absent, err := h.Leaf(ctx, root, []term.Channel{"nope"})
	require.NoError(t, err)
	assert.Nil(t, absent)

	_, err = h.Leaf(ctx, "deadbeef", []term.Channel{"ch1"})
	assert.True(t, errors.Is(err, ErrUnknownRoot))
}
