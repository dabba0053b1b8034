package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

const counterSchema = `
#count: ptd_int: null

ptd: {
	state: ptd_rec: {
		Count: #count
		Log: ptd_arr: ptd_utf8: null
	}
	cmd: ptd_var: Ticker: with_param: ptd_var: {
		Tick: no_param:   null
		Add:  with_param: #count
	}
	extCmd: ptd_var: Printer: with_param: ptd_utf8: null
}
`

func TestCompileSchemaBasic(t *testing.T) {
	reg, err := CompileSource([]byte(counterSchema), "counter.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"cmd", "extCmd", "state"}, reg.Names())
	assert.Equal(t, "{Count: int, Log: [utf8]}", reg[schema.StateType].Name())

	cmd := ir.Tag("Ticker", ir.Tag("Add", ir.Int(2)))
	assert.NoError(t, schema.Verify(cmd, schema.CommandType, reg))

	bad := ir.Tag("Ticker", ir.Tag("Add", ir.String("2")))
	assert.Error(t, schema.Verify(bad, schema.CommandType, reg))
}

func TestCompileSchemaRootStruct(t *testing.T) {
	src := `
state:  ptd_int: null
cmd:    ptd_var: W: with_param: ptd_int: null
extCmd: ptd_var: W: no_param: null
`
	reg, err := CompileSource([]byte(src), "root.cue")
	require.NoError(t, err)
	assert.Len(t, reg, 3)
}

func TestCompileSchemaLegacyPrefix(t *testing.T) {
	src := `
ptd: {
	state:  "ov.ptd_hash": "ov.ptd_int": null
	cmd:    "ov.ptd_var": W: "ov.with_param": "ov.ptd_utf8": null
	extCmd: "ov.ptd_var": W: "ov.no_param": null
}
`
	reg, err := CompileSource([]byte(src), "legacy.cue")
	require.NoError(t, err)
	assert.Equal(t, "{string: int}", reg[schema.StateType].Name())
}

func TestCompileSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing root",
			src:  `ptd: { state: ptd_int: null, cmd: ptd_int: null }`,
			want: `root type "extCmd"`,
		},
		{
			name: "unknown keyword",
			src:  `ptd: { state: ptd_float: null, cmd: ptd_int: null, extCmd: ptd_int: null }`,
			want: `unknown type keyword "ptd_float"`,
		},
		{
			name: "dangling ref",
			src:  `ptd: { state: ptd_ref: "nope", cmd: ptd_int: null, extCmd: ptd_int: null }`,
			want: `undeclared type "nope"`,
		},
		{
			name: "float literal",
			src:  `ptd: { state: ptd_int: 1.5, cmd: ptd_int: null, extCmd: ptd_int: null }`,
			want: "float values are forbidden",
		},
		{
			name: "incomplete value",
			src:  `ptd: { state: ptd_int: string, cmd: ptd_int: null, extCmd: ptd_int: null }`,
			want: "incomplete",
		},
		{
			name: "not a struct",
			src:  `ptd: 3`,
			want: "schema must be a struct",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource([]byte(tt.src), "bad.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileErrorNamesField(t *testing.T) {
	src := "ptd: {\n\tstate: ptd_nope: null\n\tcmd: ptd_int: null\n\textCmd: ptd_int: null\n}\n"
	_, err := CompileSource([]byte(src), "pos.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "state", ce.Field)
	assert.Contains(t, ce.Message, `unknown type keyword "ptd_nope"`)
	if ce.Pos.IsValid() {
		assert.Equal(t, "pos.cue", ce.Pos.Filename())
	}
}

func TestToValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{a: 1, b: "x", c: [true, null], d: {e: -3}}`)
	require.NoError(t, v.Err())

	got, err := ToValue(v)
	require.NoError(t, err)

	want := ir.Object{
		"a": ir.Int(1),
		"b": ir.String("x"),
		"c": ir.Array{ir.Bool(true), ir.Null{}},
		"d": ir.Object{"e": ir.Int(-3)},
	}
	assert.True(t, ir.Equal(want, got), "got %s", ir.MustMarshalString(got))
}

func TestLoadSchemaFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("cue", func(t *testing.T) {
		path := filepath.Join(dir, "counter.cue")
		require.NoError(t, os.WriteFile(path, []byte(counterSchema), 0o644))

		reg, err := LoadSchemaFile(path)
		require.NoError(t, err)
		assert.Len(t, reg, 3)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "counter.json")
		src := `{"ptd": {
			"state": {"ptd_int": null},
			"cmd": {"ptd_var": {"W": {"with_param": {"ptd_int": null}}}},
			"extCmd": {"ptd_var": {"W": {"no_param": null}}}
		}}`
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

		reg, err := LoadSchemaFile(path)
		require.NoError(t, err)
		assert.NoError(t, schema.Verify(ir.Tag("W", ir.Int(1)), schema.CommandType, reg))
	})

	t.Run("json missing root", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"state": {"ptd_int": null}}`), 0o644))

		_, err := LoadSchemaFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.json")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSchemaFile(filepath.Join(dir, "nope.cue"))
		assert.Error(t, err)
	})
}
