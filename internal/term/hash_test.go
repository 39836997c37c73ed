package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelHash_StableAndDistinct(t *testing.T) {
	h1 := ChannelHash("ch1")
	h2 := ChannelHash("ch1")
	h3 := ChannelHash("ch2")

	assert.Equal(t, h1, h2, "same channel must hash identically")
	assert.NotEqual(t, h1, h3, "distinct channels must hash differently")
	assert.Len(t, h1, 64, "hex-encoded SHA-256")
}

func TestGroupKey_OrderSensitive(t *testing.T) {
	ab := GroupKey([]Channel{"a", "b"})
	ba := GroupKey([]Channel{"b", "a"})

	// Patterns bind to channels positionally, so [a,b] and [b,a] are
	// different groups.
	assert.NotEqual(t, ab, ba)
	assert.Equal(t, ab, GroupKey([]Channel{"a", "b"}))
}

func TestGroupKey_SingletonDiffersFromChannelHash(t *testing.T) {
	assert.NotEqual(t, ChannelHash("a"), GroupKey([]Channel{"a"}),
		"domain separation keeps channel and group hashes apart")
}

func TestConsumeID_DependsOnAllInputs(t *testing.T) {
	channels := []Channel{"a", "b"}
	patterns := []Pattern{"int", "string"}
	k := Continuation{Tag: "handler"}

	base := MustConsumeID(channels, patterns, k, false, 7)

	assert.Equal(t, base, MustConsumeID(channels, patterns, k, false, 7))
	assert.NotEqual(t, base, MustConsumeID([]Channel{"a", "c"}, patterns, k, false, 7))
	assert.NotEqual(t, base, MustConsumeID(channels, []Pattern{"int", "bool"}, k, false, 7))
	assert.NotEqual(t, base, MustConsumeID(channels, patterns, Continuation{Tag: "other"}, false, 7))
	assert.NotEqual(t, base, MustConsumeID(channels, patterns, k, true, 7))
	assert.NotEqual(t, base, MustConsumeID(channels, patterns, k, false, 8))
}

func TestRootHash_OrderInsensitive(t *testing.T) {
	a := RootHash([]string{"x", "y", "z"})
	b := RootHash([]string{"z", "x", "y"})
	assert.Equal(t, a, b, "root depends only on leaf content")
}

func TestEmptyRootHash_Stable(t *testing.T) {
	assert.Equal(t, EmptyRootHash(), EmptyRootHash())
	assert.Equal(t, EmptyRootHash(), RootHash([]string{}))
	assert.NotEqual(t, EmptyRootHash(), RootHash([]string{"leaf"}))
}

func TestLeafHash_OwnDomain(t *testing.T) {
	g := GNAT{Channels: []Channel{"ch1"}, Row: Row{}}

	h, err := LeafHash(g)
	require.NoError(t, err)

	data, err := MarshalGNAT(g)
	require.NoError(t, err)

	assert.Equal(t, hashWithDomain(DomainLeaf, data), h)
	assert.NotEqual(t, hashWithDomain(DomainGroup, data), h,
		"leaf hashes carry their own domain, not the group-key domain")
}

func TestLeafHash_RoundTripsThroughMarshal(t *testing.T) {
	g := GNAT{
		Channels: []Channel{"ch1"},
		Row: Row{
			Data: []Datum{{Payload: Int(42), Persist: false}},
			Continuations: []WaitingContinuation{{
				Patterns:     []Pattern{"int"},
				Continuation: Continuation{Tag: "C"},
				Persist:      true,
				ConsumeID:    "abc",
			}},
		},
	}

	h1, err := LeafHash(g)
	require.NoError(t, err)

	data, err := MarshalGNAT(g)
	require.NoError(t, err)
	restored, err := UnmarshalGNAT(data)
	require.NoError(t, err)

	h2, err := LeafHash(restored)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "restored leaf must hash to the same value")
}
