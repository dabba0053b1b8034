package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/ir"
)

func mustDecode(t *testing.T, s string) ir.Value {
	t.Helper()
	v, err := ir.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"int", `{"ptd_int": null}`, "int"},
		{"utf8", `{"ptd_utf8": null}`, "utf8"},
		{"array", `{"ptd_arr": {"ptd_utf8": null}}`, "[utf8]"},
		{"hash", `{"ptd_hash": {"ptd_int": null}}`, "{string: int}"},
		{"record", `{"ptd_rec": {"B": {"ptd_int": null}, "A": {"ptd_utf8": null}}}`, "{A: utf8, B: int}"},
		{"variant", `{"ptd_var": {"Go": {"no_param": null}, "Move": {"with_param": {"ptd_int": null}}}}`, "Go | Move(int)"},
		{"ref", `{"ptd_ref": "board"}`, "@board"},
		{"legacy prefix", `{"ov.ptd_var": {"Tie": {"ov.no_param": null}, "N": {"ov.with_param": {"ov.ptd_arr": {"ov.ptd_int": null}}}}}`, "N([int]) | Tie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(mustDecode(t, tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name())
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"not an object", `"ptd_int"`, "single-key object"},
		{"two keys", `{"ptd_int": null, "ptd_utf8": null}`, "single-key object"},
		{"unknown keyword", `{"ptd_float": null}`, `unknown type keyword "ptd_float"`},
		{"int with argument", `{"ptd_int": 1}`, "ptd_int takes null"},
		{"record of non-object", `{"ptd_rec": []}`, "expects an object of fields"},
		{"bad case marker", `{"ptd_var": {"X": {"ptd_int": null}}}`, "expected no_param or with_param"},
		{"empty ref", `{"ptd_ref": ""}`, "expects a type name"},
		{"nested error path", `{"ptd_rec": {"Board": {"ptd_arr": {"nope": null}}}}`, "$.Board[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseType(mustDecode(t, tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRegistry(t *testing.T) {
	src := `{
		"state": {"ptd_hash": {"ptd_ref": "game"}},
		"game": {"ptd_rec": {"Board": {"ptd_arr": {"ptd_utf8": null}}}},
		"cmd": {"ptd_var": {"Clock": {"with_param": {"ptd_int": null}}}},
		"extCmd": {"ptd_var": {"Clock": {"no_param": null}}}
	}`

	reg, err := ParseRegistry(mustDecode(t, src))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())
	assert.Equal(t, []string{"cmd", "extCmd", "game", "state"}, reg.Names())

	state := ir.Object{"g": ir.Object{"Board": ir.Array{ir.String("X")}}}
	assert.NoError(t, Verify(state, StateType, reg))
	assert.NoError(t, Verify(ir.Tag("Clock", ir.Int(5)), CommandType, reg))
	assert.Error(t, Verify(ir.Tag("Clock", ir.Int(5)), EffectType, reg))
}

func TestParseRegistryCollectsErrors(t *testing.T) {
	src := `{"a": {"bad": null}, "b": {"ptd_int": 3}, "c": {"ptd_int": null}}`
	_, err := ParseRegistry(mustDecode(t, src))
	require.Error(t, err)

	agg, ok := err.(*AggregateError)
	require.True(t, ok)
	assert.Len(t, agg.Errors, 2)
}

func TestDescribeRoundTrip(t *testing.T) {
	src := `{"ptd_hash": {"ptd_rec": {
		"Board": {"ptd_arr": {"ptd_utf8": null}},
		"LastTimerCallId": {"ptd_int": null},
		"State": {"ptd_var": {"Playing": {"no_param": null}, "Next": {"with_param": {"ptd_ref": "x"}}}}
	}}}`

	in := mustDecode(t, src)
	typ, err := ParseType(in)
	require.NoError(t, err)

	out := Describe(typ)
	assert.True(t, ir.Equal(in, out), "got %s", ir.MustMarshalString(out))

	again, err := ParseType(out)
	require.NoError(t, err)
	assert.Equal(t, typ.Name(), again.Name())
}

func TestDescribeRegistry(t *testing.T) {
	reg := Registry{"n": Int(), "s": String()}
	got := DescribeRegistry(reg)
	assert.Equal(t, `{"n":{"ptd_int":null},"s":{"ptd_utf8":null}}`, ir.MustMarshalString(got))
}
