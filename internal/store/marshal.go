package store

import (
	"fmt"
	"strings"

	"github.com/roach88/nianio/internal/ir"
)

// marshalValue converts a Value to canonical JSON TEXT for storage.
// Canonical form keeps stored rows byte-stable across runs.
func marshalValue(what string, v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON TEXT back to a Value.
func unmarshalValue(what, data string) (ir.Value, error) {
	v, err := ir.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return v, nil
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func splitNames(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
