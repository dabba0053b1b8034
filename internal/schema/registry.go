package schema

import (
	"fmt"
	"sort"
)

// Root type names every engine schema must declare.
const (
	StateType   = "state"
	CommandType = "cmd"
	EffectType  = "extCmd"
)

// RootTypes lists the required root names in declaration order.
var RootTypes = []string{StateType, CommandType, EffectType}

// Registry maps type names to descriptors.
// It holds the three roots plus any named types referenced through RefType.
type Registry map[string]Type

// Names returns the registered type names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the registry is usable by the engine:
// every root is declared, every ref resolves, and no chain of refs
// loops back on itself without passing through a constructor.
func (r Registry) Validate() error {
	if r == nil {
		return &AggregateError{Errors: []error{fmt.Errorf("schema registry is nil")}}
	}

	var errs []error
	for _, root := range RootTypes {
		if t, ok := r[root]; !ok || t == nil {
			errs = append(errs, fmt.Errorf("schema doesn't declare root type %q", root))
		}
	}

	for _, name := range r.Names() {
		t := r[name]
		if t == nil {
			if !isRoot(name) {
				errs = append(errs, fmt.Errorf("type %q is nil", name))
			}
			continue
		}
		if err := r.checkRefs(name, t); err != nil {
			errs = append(errs, err)
		}
		if err := r.checkRefCycle(name); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// checkRefs reports the first dangling ref or nil node under t.
func (r Registry) checkRefs(owner string, t Type) error {
	switch tt := t.(type) {
	case nil:
		return fmt.Errorf("type %q: nil descriptor", owner)
	case *ArrayType:
		return r.checkRefs(owner, tt.Elem)
	case *MapType:
		return r.checkRefs(owner, tt.Elem)
	case *RecordType:
		for _, f := range tt.FieldNames() {
			if err := r.checkRefs(owner, tt.Fields[f]); err != nil {
				return err
			}
		}
	case *VariantType:
		for _, c := range tt.CaseNames() {
			if p := tt.Cases[c].Payload; p != nil {
				if err := r.checkRefs(owner, p); err != nil {
					return err
				}
			}
		}
	case *RefType:
		if target, ok := r[tt.Target]; !ok || target == nil {
			return fmt.Errorf("type %q: reference to undeclared type %q", owner, tt.Target)
		}
	}
	return nil
}

// checkRefCycle detects names that resolve to themselves purely through refs,
// which would make Verify loop forever without consuming any value.
func (r Registry) checkRefCycle(start string) error {
	seen := map[string]bool{start: true}
	t := r[start]
	for {
		ref, ok := t.(*RefType)
		if !ok {
			return nil
		}
		if seen[ref.Target] {
			return fmt.Errorf("type %q: reference cycle through %q", start, ref.Target)
		}
		seen[ref.Target] = true
		t = r[ref.Target]
	}
}

// Resolve follows refs until a non-ref type is reached.
func (r Registry) Resolve(t Type) (Type, error) {
	for i := 0; ; i++ {
		ref, ok := t.(*RefType)
		if !ok {
			return t, nil
		}
		if i > len(r) {
			return nil, fmt.Errorf("reference cycle through %q", ref.Target)
		}
		target, exists := r[ref.Target]
		if !exists || target == nil {
			return nil, fmt.Errorf("reference to undeclared type %q", ref.Target)
		}
		t = target
	}
}

func isRoot(name string) bool {
	for _, root := range RootTypes {
		if root == name {
			return true
		}
	}
	return false
}
