package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalValue_BasicTypes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"string", `"hello"`, String("hello")},
		{"int", `42`, Int(42)},
		{"negative int", `-7`, Int(-7)},
		{"bool true", `true`, Bool(true)},
		{"bool false", `false`, Bool(false)},
		{"array", `[1,"two",true]`, Array{Int(1), String("two"), Bool(true)}},
		{"object", `{"k":1}`, Object{"k": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalValue_RejectsFloats(t *testing.T) {
	for _, input := range []string{`3.14`, `1e5`, `{"k":0.5}`, `[1.0]`} {
		_, err := UnmarshalValue([]byte(input))
		assert.Error(t, err, "input %s should be rejected", input)
	}
}

func TestUnmarshalValue_RejectsNull(t *testing.T) {
	_, err := UnmarshalValue([]byte(`null`))
	require.Error(t, err)

	_, err = UnmarshalValue([]byte(`{"k":null}`))
	require.Error(t, err)
}

func TestUnmarshalValue_LargeIntegerPrecision(t *testing.T) {
	// Values above 2^53 must not lose precision through float64.
	got, err := UnmarshalValue([]byte(`9007199254740993`))
	require.NoError(t, err)
	assert.Equal(t, Int(9007199254740993), got)
}

func TestMarshalValue_RoundTrip(t *testing.T) {
	v := Object{
		"order": Object{"id": Int(1), "items": Array{String("a"), String("b")}},
		"open":  Bool(true),
	}

	data, err := MarshalValue(v)
	require.NoError(t, err)

	back, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1D306 encodes as surrogates (first unit 0xD834), so it sorts before
	// U+FB01 under UTF-16 code unit order; a byte-wise UTF-8 sort reverses
	// them.
	obj := Object{
		"\U0001D306": Int(1),
		"ﬁ":     Int(2),
	}
	assert.Equal(t, []string{"\U0001D306", "ﬁ"}, obj.SortedKeys())
}
