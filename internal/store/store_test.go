package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tuplespace/internal/term"
)

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "space.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Idempotent: opening the same file again applies schema harmlessly.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
}

func TestPutAndGetData(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(txn *Txn) error {
		if err := txn.PutDatum("ch1", term.Datum{Payload: term.Int(42)}); err != nil {
			return err
		}
		return txn.PutDatum("ch1", term.Datum{Payload: term.String("second"), Persist: true})
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		data, err := txn.Data("ch1")
		require.NoError(t, err)
		require.Len(t, data, 2)
		assert.Equal(t, term.Int(42), data[0].Payload)
		assert.False(t, data[0].Persist)
		assert.Equal(t, term.String("second"), data[1].Payload)
		assert.True(t, data[1].Persist)

		other, err := txn.Data("ch2")
		require.NoError(t, err)
		assert.Empty(t, other, "unrelated channel must be empty")
		return nil
	})
	require.NoError(t, err)
}

func TestRemoveDatum_ByPosition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(txn *Txn) error {
		for _, v := range []int64{1, 2, 3} {
			if err := txn.PutDatum("ch1", term.Datum{Payload: term.Int(v)}); err != nil {
				return err
			}
		}
		// Remove the middle entry; positions are insertion order.
		return txn.RemoveDatum("ch1", 1)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		data, err := txn.Data("ch1")
		require.NoError(t, err)
		require.Len(t, data, 2)
		assert.Equal(t, term.Int(1), data[0].Payload)
		assert.Equal(t, term.Int(3), data[1].Payload)
		return nil
	})
	require.NoError(t, err)
}

func TestRemoveDatum_StaleIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(txn *Txn) error {
		return txn.RemoveDatum("ch1", 0)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestContinuations_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	group := []term.Channel{"a", "b"}

	wc := term.WaitingContinuation{
		Patterns:     []term.Pattern{"int", "string"},
		Continuation: term.Continuation{Tag: "C", Env: term.Object{"who": term.String("me")}},
		Persist:      true,
		ConsumeID:    "cid-1",
	}

	err := s.Update(ctx, func(txn *Txn) error {
		return txn.PutContinuation(group, wc)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		conts, err := txn.Continuations(group)
		require.NoError(t, err)
		require.Len(t, conts, 1)
		assert.Equal(t, wc, conts[0])

		// The reversed group is a different key.
		reversed, err := txn.Continuations([]term.Channel{"b", "a"})
		require.NoError(t, err)
		assert.Empty(t, reversed)
		return nil
	})
	require.NoError(t, err)
}

func TestRemoveContinuation_ByPosition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	group := []term.Channel{"ch1"}

	err := s.Update(ctx, func(txn *Txn) error {
		if err := txn.PutContinuation(group, createTestWaiting("first", false, "int")); err != nil {
			return err
		}
		if err := txn.PutContinuation(group, createTestWaiting("second", false, "string")); err != nil {
			return err
		}
		return txn.RemoveContinuation(group, 0)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		conts, err := txn.Continuations(group)
		require.NoError(t, err)
		require.Len(t, conts, 1)
		assert.Equal(t, "second", conts[0].Continuation.Tag)
		return nil
	})
	require.NoError(t, err)
}

func TestJoins_AddIdempotentAndRemove(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	group := []term.Channel{"a", "b"}

	err := s.Update(ctx, func(txn *Txn) error {
		if err := txn.AddJoin("a", group); err != nil {
			return err
		}
		// Second add is a no-op.
		if err := txn.AddJoin("a", group); err != nil {
			return err
		}
		return txn.AddJoin("a", []term.Channel{"a"})
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		groups, err := txn.Joins("a")
		require.NoError(t, err)
		assert.Len(t, groups, 2)
		return nil
	})
	require.NoError(t, err)

	err = s.Update(ctx, func(txn *Txn) error {
		return txn.RemoveJoin("a", group)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		groups, err := txn.Joins("a")
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, []term.Channel{"a"}, groups[0])
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("abort")
	err := s.Update(ctx, func(txn *Txn) error {
		if err := txn.PutDatum("ch1", term.Datum{Payload: term.Int(1)}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	err = s.View(ctx, func(txn *Txn) error {
		data, err := txn.Data("ch1")
		require.NoError(t, err)
		assert.Empty(t, data, "failed transaction must leave no residue")
		return nil
	})
	require.NoError(t, err)
}

func TestView_RejectsWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.View(ctx, func(txn *Txn) error {
		return txn.PutDatum("ch1", term.Datum{Payload: term.Int(1)})
	})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestNextSeq_Monotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var first, second int64
	err := s.Update(ctx, func(txn *Txn) error {
		var err error
		if first, err = txn.NextSeq(); err != nil {
			return err
		}
		second, err = txn.NextSeq()
		return err
	})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	// The clock survives Clear.
	var afterClear int64
	err = s.Update(ctx, func(txn *Txn) error {
		if err := txn.Clear(); err != nil {
			return err
		}
		var err error
		afterClear, err = txn.NextSeq()
		return err
	})
	require.NoError(t, err)
	assert.Greater(t, afterClear, second)
}

func TestClear_RemovesEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(txn *Txn) error {
		if err := txn.PutDatum("ch1", term.Datum{Payload: term.Int(1)}); err != nil {
			return err
		}
		if err := txn.PutContinuation([]term.Channel{"ch1"}, createTestWaiting("C", false, "int")); err != nil {
			return err
		}
		if err := txn.AddJoin("ch1", []term.Channel{"ch1"}); err != nil {
			return err
		}
		return txn.Clear()
	})
	require.NoError(t, err)

	err = s.View(ctx, func(txn *Txn) error {
		data, err := txn.Data("ch1")
		require.NoError(t, err)
		assert.Empty(t, data)

		conts, err := txn.Continuations([]term.Channel{"ch1"})
		require.NoError(t, err)
		assert.Empty(t, conts)

		joins, err := txn.Joins("ch1")
		require.NoError(t, err)
		assert.Empty(t, joins)
		return nil
	})
	require.NoError(t, err)
}
