package cuematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tuplespace/internal/term"
)

func TestMatch_Wildcard(t *testing.T) {
	m := New()

	for _, payload := range []term.Value{
		term.Int(42),
		term.String("anything"),
		term.Bool(true),
		term.Object{"k": term.Int(1)},
	} {
		result, ok, err := m.Match("_", payload)
		require.NoError(t, err)
		assert.True(t, ok, "wildcard must match %#v", payload)
		assert.Equal(t, payload, result)
	}
}

func TestMatch_ExactValue(t *testing.T) {
	m := New()

	_, ok, err := m.Match("42", term.Int(42))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = m.Match("42", term.Int(43))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Match(`"hello"`, term.String("hello"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = m.Match(`"hello"`, term.String("world"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_TypeConstraint(t *testing.T) {
	m := New()

	_, ok, err := m.Match("int", term.Int(7))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = m.Match("int", term.String("7"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Match("string", term.String("7"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_Bounds(t *testing.T) {
	m := New()

	_, ok, err := m.Match("int & >10", term.Int(11))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = m.Match("int & >10", term.Int(10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_OpenStruct(t *testing.T) {
	m := New()
	pattern := term.Pattern(`{kind: "order", total: int}`)

	payload := term.Object{
		"kind":  term.String("order"),
		"total": term.Int(250),
		"note":  term.String("rush"),
	}
	result, ok, err := m.Match(pattern, payload)
	require.NoError(t, err)
	assert.True(t, ok, "open struct admits extra fields")
	assert.Equal(t, payload, result)

	_, ok, err = m.Match(pattern, term.Object{
		"kind":  term.String("refund"),
		"total": term.Int(250),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Match(pattern, term.Object{
		"kind": term.String("order"),
	})
	require.NoError(t, err)
	assert.False(t, ok, "missing required field fails concreteness")
}

func TestMatch_Disjunction(t *testing.T) {
	m := New()
	pattern := term.Pattern(`"red" | "green" | "blue"`)

	_, ok, err := m.Match(pattern, term.String("green"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = m.Match(pattern, term.String("mauve"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_MalformedPatternErrors(t *testing.T) {
	m := New()

	_, _, err := m.Match(term.Pattern(`{kind: `), term.Int(1))
	assert.Error(t, err, "a broken pattern surfaces an error, not a silent non-match")
}

func TestMatch_CacheReusesCompiledPattern(t *testing.T) {
	m := New()

	_, ok, err := m.Match("int", term.Int(1))
	require.NoError(t, err)
	require.True(t, ok)

	m.mu.RLock()
	_, cached := m.cache["int"]
	m.mu.RUnlock()
	assert.True(t, cached)

	// Second match hits the cache and agrees.
	_, ok, err = m.Match("int", term.Int(2))
	require.NoError(t, err)
	assert.True(t, ok)
}
