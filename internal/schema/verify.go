package schema

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/nianio/internal/ir"
)

// Verify checks v against the registry entry typeName.
// It returns nil when v conforms and a *ValidationError describing the
// first mismatch otherwise. The walk is a single generic recursion over the
// descriptor tree; no type is special-cased.
func Verify(v ir.Value, typeName string, r Registry) error {
	t, ok := r[typeName]
	if !ok || t == nil {
		return &ValidationError{
			Path:     "$",
			TypeName: typeName,
			Reason:   "type is not declared",
			Value:    v,
		}
	}

	c := checker{registry: r, root: typeName, value: v}
	return c.check(v, t, "$", 0)
}

// Check is the boolean form of Verify.
func Check(v ir.Value, typeName string, r Registry) bool {
	return Verify(v, typeName, r) == nil
}

// maxRefDepth bounds ref chains that never reach a constructor.
// Registry.Validate rejects those up front; this guards unvalidated registries.
const maxRefDepth = 256

type checker struct {
	registry Registry
	root     string
	value    ir.Value
}

func (c *checker) fail(path string, t Type, format string, args ...any) error {
	return &ValidationError{
		Path:     path,
		TypeName: c.root,
		Reason:   fmt.Sprintf(format, args...),
		Expected: t,
		Value:    c.value,
	}
}

func (c *checker) check(v ir.Value, t Type, path string, refDepth int) error {
	switch tt := t.(type) {
	case *IntType:
		if _, ok := v.(ir.Int); !ok {
			return c.fail(path, t, "expected int, got %s", ir.KindName(v))
		}
		return nil

	case *StringType:
		s, ok := v.(ir.String)
		if !ok {
			return c.fail(path, t, "expected string, got %s", ir.KindName(v))
		}
		if !utf8.ValidString(string(s)) {
			return c.fail(path, t, "string is not valid UTF-8")
		}
		return nil

	case *ArrayType:
		arr, ok := v.(ir.Array)
		if !ok {
			return c.fail(path, t, "expected array, got %s", ir.KindName(v))
		}
		for i, elem := range arr {
			if err := c.check(elem, tt.Elem, path+"["+strconv.Itoa(i)+"]", 0); err != nil {
				return err
			}
		}
		return nil

	case *MapType:
		obj, ok := v.(ir.Object)
		if !ok {
			return c.fail(path, t, "expected object, got %s", ir.KindName(v))
		}
		for _, k := range obj.SortedKeys() {
			if err := c.check(obj[k], tt.Elem, childPath(path, k), 0); err != nil {
				return err
			}
		}
		return nil

	case *RecordType:
		obj, ok := v.(ir.Object)
		if !ok {
			return c.fail(path, t, "expected record, got %s", ir.KindName(v))
		}
		for _, f := range tt.FieldNames() {
			fv, present := obj[f]
			if !present {
				return c.fail(path, t, "missing field %q", f)
			}
			if err := c.check(fv, tt.Fields[f], childPath(path, f), 0); err != nil {
				return err
			}
		}
		for _, k := range obj.SortedKeys() {
			if _, declared := tt.Fields[k]; !declared {
				return c.fail(path, t, "unexpected field %q", k)
			}
		}
		return nil

	case *VariantType:
		obj, ok := v.(ir.Object)
		if !ok {
			return c.fail(path, t, "expected variant, got %s", ir.KindName(v))
		}
		if len(obj) != 1 {
			return c.fail(path, t, "variant must have exactly one key, got %d", len(obj))
		}
		var name string
		var payload ir.Value
		for k, p := range obj {
			name, payload = k, p
		}
		cs, declared := tt.Cases[name]
		if !declared {
			return c.fail(path, t, "unknown variant case %q", name)
		}
		if !cs.HasParam() {
			if _, isNull := payload.(ir.Null); !isNull {
				return c.fail(childPath(path, name), t, "case %q takes no parameter, got %s", name, ir.KindName(payload))
			}
			return nil
		}
		return c.check(payload, cs.Payload, childPath(path, name), 0)

	case *RefType:
		if refDepth >= maxRefDepth {
			return c.fail(path, t, "reference chain through %q does not terminate", tt.Target)
		}
		target, ok := c.registry[tt.Target]
		if !ok || target == nil {
			return c.fail(path, t, "reference to undeclared type %q", tt.Target)
		}
		return c.check(v, target, path, refDepth+1)

	case nil:
		return c.fail(path, nil, "nil type descriptor")

	default:
		return c.fail(path, t, "unsupported type descriptor %T", t)
	}
}

// childPath appends a key to a path, quoting keys that are not identifiers.
func childPath(path, key string) string {
	if isIdent(key) {
		return path + "." + key
	}
	return path + "[" + strconv.Quote(key) + "]"
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
