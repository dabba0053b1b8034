package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/nianio/internal/ir"
)

// PTD keywords. A descriptor is a single-key object whose key is one of
// these and whose value is the keyword's argument. The legacy "ov." prefix
// is accepted on every keyword.
const (
	keyInt       = "ptd_int"
	keyUTF8      = "ptd_utf8"
	keyArr       = "ptd_arr"
	keyHash      = "ptd_hash"
	keyRec       = "ptd_rec"
	keyVar       = "ptd_var"
	keyRef       = "ptd_ref"
	keyNoParam   = "no_param"
	keyWithParam = "with_param"

	legacyPrefix = "ov."
)

// ParseRegistry reads an object mapping type names to PTD descriptors.
// All problems are collected into one *AggregateError.
// The result is not validated; call Registry.Validate for roots and refs.
func ParseRegistry(v ir.Value) (Registry, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("schema must be an object of named types, got %s", ir.KindName(v))
	}

	reg := make(Registry, len(obj))
	var errs []error
	for _, name := range obj.SortedKeys() {
		t, err := parseType(obj[name], name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reg[name] = t
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return reg, nil
}

// ParseType reads a single PTD descriptor.
func ParseType(v ir.Value) (Type, error) {
	return parseType(v, "$")
}

func parseType(v ir.Value, path string) (Type, error) {
	key, arg, err := keyword(v, path)
	if err != nil {
		return nil, err
	}

	switch key {
	case keyInt:
		if err := expectNull(arg, path, key); err != nil {
			return nil, err
		}
		return Int(), nil

	case keyUTF8:
		if err := expectNull(arg, path, key); err != nil {
			return nil, err
		}
		return String(), nil

	case keyArr:
		elem, err := parseType(arg, path+"[]")
		if err != nil {
			return nil, err
		}
		return Array(elem), nil

	case keyHash:
		elem, err := parseType(arg, path+"{}")
		if err != nil {
			return nil, err
		}
		return Map(elem), nil

	case keyRec:
		obj, ok := arg.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("%s: %s expects an object of fields, got %s", path, key, ir.KindName(arg))
		}
		fields := make(map[string]Type, len(obj))
		for _, f := range obj.SortedKeys() {
			ft, err := parseType(obj[f], childPath(path, f))
			if err != nil {
				return nil, err
			}
			fields[f] = ft
		}
		return Record(fields), nil

	case keyVar:
		obj, ok := arg.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("%s: %s expects an object of cases, got %s", path, key, ir.KindName(arg))
		}
		cases := make(map[string]Case, len(obj))
		for _, name := range obj.SortedKeys() {
			cs, err := parseCase(obj[name], childPath(path, name))
			if err != nil {
				return nil, err
			}
			cases[name] = cs
		}
		return Variant(cases), nil

	case keyRef:
		target, ok := arg.(ir.String)
		if !ok || target == "" {
			return nil, fmt.Errorf("%s: %s expects a type name", path, key)
		}
		return Ref(string(target)), nil

	default:
		return nil, fmt.Errorf("%s: unknown type keyword %q", path, key)
	}
}

func parseCase(v ir.Value, path string) (Case, error) {
	key, arg, err := keyword(v, path)
	if err != nil {
		return Case{}, err
	}
	switch key {
	case keyNoParam:
		if err := expectNull(arg, path, key); err != nil {
			return Case{}, err
		}
		return NoParam(), nil
	case keyWithParam:
		t, err := parseType(arg, path)
		if err != nil {
			return Case{}, err
		}
		return WithParam(t), nil
	default:
		return Case{}, fmt.Errorf("%s: expected %s or %s, got %q", path, keyNoParam, keyWithParam, key)
	}
}

// keyword unwraps a single-key descriptor object and strips the legacy prefix.
func keyword(v ir.Value, path string) (string, ir.Value, error) {
	obj, ok := v.(ir.Object)
	if !ok || len(obj) != 1 {
		return "", nil, fmt.Errorf("%s: descriptor must be a single-key object", path)
	}
	for k, arg := range obj {
		return strings.TrimPrefix(k, legacyPrefix), arg, nil
	}
	panic("unreachable")
}

func expectNull(arg ir.Value, path, key string) error {
	if _, ok := arg.(ir.Null); !ok {
		return fmt.Errorf("%s: %s takes null, got %s", path, key, ir.KindName(arg))
	}
	return nil
}

// Describe renders t back into PTD notation. It is the inverse of ParseType.
func Describe(t Type) ir.Value {
	switch tt := t.(type) {
	case *IntType:
		return ir.Tag(keyInt, nil)
	case *StringType:
		return ir.Tag(keyUTF8, nil)
	case *ArrayType:
		return ir.Tag(keyArr, Describe(tt.Elem))
	case *MapType:
		return ir.Tag(keyHash, Describe(tt.Elem))
	case *RecordType:
		fields := make(ir.Object, len(tt.Fields))
		for name, ft := range tt.Fields {
			fields[name] = Describe(ft)
		}
		return ir.Tag(keyRec, fields)
	case *VariantType:
		cases := make(ir.Object, len(tt.Cases))
		for name, cs := range tt.Cases {
			if cs.HasParam() {
				cases[name] = ir.Tag(keyWithParam, Describe(cs.Payload))
			} else {
				cases[name] = ir.Tag(keyNoParam, nil)
			}
		}
		return ir.Tag(keyVar, cases)
	case *RefType:
		return ir.Tag(keyRef, ir.String(tt.Target))
	default:
		return ir.Null{}
	}
}

// DescribeRegistry renders every named type of r into PTD notation.
func DescribeRegistry(r Registry) ir.Object {
	out := make(ir.Object, len(r))
	for name, t := range r {
		out[name] = Describe(t)
	}
	return out
}
