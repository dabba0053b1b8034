package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a schema compilation error. Field is the registry entry
// (or "ptd" for the schema as a whole) and Pos points into the CUE source
// when known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
}

// formatCUEError turns the first of a CUE error list into a CompileError
// carrying its position. Errors without a position are returned unchanged.
func formatCUEError(err error) error {
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}
	first := list[0]
	pos := errors.Positions(first)
	if len(pos) == 0 {
		return err
	}
	return &CompileError{Field: "cue", Message: first.Error(), Pos: pos[0]}
}
