package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"min int64", Int(-9223372036854775808), "-9223372036854775808"},
		{"bool", Bool(true), "true"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"sorted keys", Object{"zebra": Int(1), "alpha": Int(2)}, `{"alpha":2,"zebra":1}`},
		{"no html escape", String("<a&b>"), `"<a&b>"`},
		{"tagged", Tag("Playing", nil), `{"Playing":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	decomposed := String("e\u0301")
	precomposed := String("\u00e9")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalMissing(t *testing.T) {
	_, err := MarshalCanonical(Object{"a": nil})
	assert.Error(t, err)
}

func TestStateHashStable(t *testing.T) {
	a := Object{"g1": Object{"LastTimerCallId": Int(0), "Board": Array{String(" ")}}}
	b := Clone(a)

	ha, err := StateHash(a)
	require.NoError(t, err)
	hb, err := StateHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	b.(Object)["g1"].(Object)["LastTimerCallId"] = Int(1)
	hc, err := StateHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestCommandIDDependsOnSeq(t *testing.T) {
	cmd := Tag("TimerWorker", Tag("TimeOut", Object{"GameId": String("g"), "CallId": Int(0)}))

	id1, err := CommandID("run-1", 1, cmd)
	require.NoError(t, err)
	id2, err := CommandID("run-1", 2, cmd)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}
