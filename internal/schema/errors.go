package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nianio/internal/ir"
)

// ValidationError reports the first place where a value departs from its type.
type ValidationError struct {
	// Path locates the offending node, e.g. "$.Board[3]".
	Path string

	// TypeName is the registry root the value was checked against.
	TypeName string

	// Reason describes the mismatch at Path.
	Reason string

	// Expected is the descriptor at Path, nil when the type itself is missing.
	Expected Type

	// Value is the whole value that was checked.
	Value ir.Value
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("value does not match %q at %s: %s", e.TypeName, e.Path, e.Reason)
}

// Detail renders the multi-line diagnostic printed before termination:
// the PTD of the expected type followed by the rejected value.
func (e *ValidationError) Detail() string {
	var b strings.Builder
	b.WriteString(e.Error())
	if e.Expected != nil {
		b.WriteString("\nPTD: ")
		b.WriteString(ir.MustMarshalString(Describe(e.Expected)))
	}
	b.WriteString("\nValue: ")
	b.WriteString(ir.MustMarshalString(e.Value))
	return b.String()
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AggregateError collects every problem found while validating a registry
// or parsing PTD notation. It does not fail fast.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d schema errors:\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}
