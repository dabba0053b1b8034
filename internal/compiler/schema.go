package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

// SchemaField is the top-level CUE field holding the named PTD types.
// When a file has no such field, its root struct is used instead.
const SchemaField = "ptd"

// CompileSchema compiles a CUE struct of named PTD descriptors into a
// validated schema.Registry.
//
// Definitions (#name) and hidden fields are not exported, so they can be
// used to share sub-descriptors without becoming registry entries:
//
//	#board: ptd_arr: ptd_utf8: null
//	ptd: {
//		state:  ptd_hash: ptd_rec: Board: #board
//		cmd:    ptd_var: Tick: no_param: null
//		extCmd: ptd_var: Tick: no_param: null
//	}
func CompileSchema(v cue.Value) (schema.Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if sv := v.LookupPath(cue.ParsePath(SchemaField)); sv.Exists() {
		v = sv
	}

	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   SchemaField,
			Message: fmt.Sprintf("schema must be a struct of named types, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := make(schema.Registry)
	for iter.Next() {
		name := iter.Label()
		typeVal := iter.Value()

		desc, err := ToValue(typeVal)
		if err != nil {
			return nil, err
		}
		t, err := schema.ParseType(desc)
		if err != nil {
			return nil, &CompileError{
				Field:   name,
				Message: err.Error(),
				Pos:     typeVal.Pos(),
			}
		}
		reg[name] = t
	}

	if err := reg.Validate(); err != nil {
		return nil, &CompileError{
			Field:   SchemaField,
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return reg, nil
}

// CompileSource compiles CUE source text. filename is used for positions only.
func CompileSource(src []byte, filename string) (schema.Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileSchema(v)
}

// LoadSchemaFile reads a schema from disk.
// Files ending in .json are parsed as PTD notation directly; anything else
// is compiled as CUE.
func LoadSchemaFile(path string) (schema.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	if filepath.Ext(path) != ".json" {
		return CompileSource(data, path)
	}

	v, err := ir.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if obj, ok := v.(ir.Object); ok {
		if inner, has := obj[SchemaField]; has {
			v = inner
		}
	}
	reg, err := schema.ParseRegistry(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ToValue converts a concrete CUE value into an ir.Value.
// Floats are rejected: every number crossing the engine boundary is an int.
func ToValue(v cue.Value) (ir.Value, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil

	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := ToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil

	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := ToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil

	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}

	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}
