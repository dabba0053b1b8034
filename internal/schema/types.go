package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the shape of a Type.
type Kind int

const (
	KindInt Kind = iota + 1
	KindString
	KindArray
	KindMap
	KindRecord
	KindVariant
	KindRef
)

// String returns the PTD keyword for the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "ptd_int"
	case KindString:
		return "ptd_utf8"
	case KindArray:
		return "ptd_arr"
	case KindMap:
		return "ptd_hash"
	case KindRecord:
		return "ptd_rec"
	case KindVariant:
		return "ptd_var"
	case KindRef:
		return "ptd_ref"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Type is a node of a schema descriptor tree.
// The concrete types below are the only implementations.
type Type interface {
	// Kind returns the shape of the type.
	Kind() Kind
	// Name returns a compact human-readable description (e.g., "[utf8]").
	Name() string
}

// IntType accepts integers.
type IntType struct{}

func (*IntType) Kind() Kind   { return KindInt }
func (*IntType) Name() string { return "int" }

// StringType accepts valid UTF-8 strings.
type StringType struct{}

func (*StringType) Kind() Kind   { return KindString }
func (*StringType) Name() string { return "utf8" }

// ArrayType accepts arrays whose elements all match Elem.
type ArrayType struct {
	Elem Type
}

func (*ArrayType) Kind() Kind     { return KindArray }
func (t *ArrayType) Name() string { return "[" + t.Elem.Name() + "]" }

// MapType accepts string-keyed objects whose values all match Elem.
type MapType struct {
	Elem Type
}

func (*MapType) Kind() Kind     { return KindMap }
func (t *MapType) Name() string { return "{string: " + t.Elem.Name() + "}" }

// RecordType accepts objects with exactly the declared fields.
type RecordType struct {
	Fields map[string]Type
}

func (*RecordType) Kind() Kind { return KindRecord }

func (t *RecordType) Name() string {
	names := t.FieldNames()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + t.Fields[n].Name()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FieldNames returns the record's field names in sorted order.
func (t *RecordType) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for n := range t.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Case is one alternative of a VariantType.
// A nil Payload means the case carries no parameter (its value is null).
type Case struct {
	Payload Type
}

// HasParam reports whether the case carries a payload.
func (c Case) HasParam() bool { return c.Payload != nil }

// VariantType accepts single-key objects whose key names a declared case.
type VariantType struct {
	Cases map[string]Case
}

func (*VariantType) Kind() Kind { return KindVariant }

func (t *VariantType) Name() string {
	names := t.CaseNames()
	parts := make([]string, len(names))
	for i, n := range names {
		c := t.Cases[n]
		if c.HasParam() {
			parts[i] = n + "(" + c.Payload.Name() + ")"
		} else {
			parts[i] = n
		}
	}
	return strings.Join(parts, " | ")
}

// CaseNames returns the variant's case names in sorted order.
func (t *VariantType) CaseNames() []string {
	names := make([]string, 0, len(t.Cases))
	for n := range t.Cases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RefType refers to another named type in the Registry.
// Refs allow recursive and shared definitions.
type RefType struct {
	Target string
}

func (*RefType) Kind() Kind     { return KindRef }
func (t *RefType) Name() string { return "@" + t.Target }

// --- Factory Functions ---

// Int creates an integer type.
func Int() Type { return &IntType{} }

// String creates a UTF-8 string type.
func String() Type { return &StringType{} }

// Array creates a homogeneous array type.
func Array(elem Type) Type { return &ArrayType{Elem: elem} }

// Map creates a string-keyed homogeneous map type.
func Map(elem Type) Type { return &MapType{Elem: elem} }

// Record creates a fixed-field record type.
func Record(fields map[string]Type) Type { return &RecordType{Fields: fields} }

// Variant creates a tagged union type.
func Variant(cases map[string]Case) Type { return &VariantType{Cases: cases} }

// Ref creates a named reference.
func Ref(target string) Type { return &RefType{Target: target} }

// NoParam declares a variant case without payload.
func NoParam() Case { return Case{} }

// WithParam declares a variant case carrying a payload of type t.
func WithParam(t Type) Case { return Case{Payload: t} }
