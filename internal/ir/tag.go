package ir

import "fmt"

// Tag wraps payload in a single-key object: {name: payload}.
// This is the wire shape of commands, effect commands and variant values.
func Tag(name string, payload Value) Object {
	if payload == nil {
		payload = Null{}
	}
	return Object{name: payload}
}

// Untag splits a single-key object into its tag and payload.
// It fails if v is not an object or does not have exactly one key.
func Untag(v Value) (string, Value, error) {
	obj, ok := v.(Object)
	if !ok {
		return "", nil, fmt.Errorf("tagged value must be an object, got %s", KindName(v))
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("tagged value must have exactly one key, got %d", len(obj))
	}
	for k, payload := range obj {
		return k, payload, nil
	}
	panic("unreachable")
}

// HasTag reports whether v is a single-key object tagged with name.
func HasTag(v Value, name string) bool {
	tag, _, err := Untag(v)
	return err == nil && tag == name
}
