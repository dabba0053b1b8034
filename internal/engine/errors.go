package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an error detected during engine execution.
//
// Every RuntimeError except ErrCodeInvalidConfig is fatal: it is reported
// once through Host.TerminateOnFatal and the engine halts. There is no
// retry, no rollback and no resumed draining.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Worker is the worker name involved, if any.
	Worker string

	// TypeName is the schema root that rejected a value (schema violations).
	TypeName string

	// Seq is the step sequence number, 0 outside a drain step.
	Seq int64

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeSchemaViolation indicates a value failed one of the three boundary checks.
	ErrCodeSchemaViolation RuntimeErrorCode = "SCHEMA_VIOLATION"

	// ErrCodeUnknownWorker indicates a tag names no registered worker.
	ErrCodeUnknownWorker RuntimeErrorCode = "UNKNOWN_WORKER"

	// ErrCodeTransitionFault indicates the transition function failed or panicked.
	ErrCodeTransitionFault RuntimeErrorCode = "TRANSITION_FAULT"

	// ErrCodeWorkerFault indicates a worker factory or effect handler panicked.
	ErrCodeWorkerFault RuntimeErrorCode = "WORKER_FAULT"

	// ErrCodeInvalidConfig indicates Start was called with unusable parameters.
	ErrCodeInvalidConfig RuntimeErrorCode = "INVALID_CONFIG"

	// ErrCodeHalted indicates the engine already stopped after a fatal error.
	ErrCodeHalted RuntimeErrorCode = "HALTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.Worker != "" {
		ctx = append(ctx, "worker="+e.Worker)
	}
	if e.Seq > 0 {
		ctx = append(ctx, fmt.Sprintf("seq=%d", e.Seq))
	}
	if len(ctx) > 0 {
		b.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first RuntimeError in err's chain,
// or "" if there is none.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsSchemaViolation returns true if the error is a schema violation.
func IsSchemaViolation(err error) bool {
	return CodeOf(err) == ErrCodeSchemaViolation
}

// IsUnknownWorker returns true if the error names an unregistered worker.
func IsUnknownWorker(err error) bool {
	return CodeOf(err) == ErrCodeUnknownWorker
}

// IsTransitionFault returns true if the transition function failed.
func IsTransitionFault(err error) bool {
	return CodeOf(err) == ErrCodeTransitionFault
}

// IsWorkerFault returns true if a worker factory or handler panicked.
func IsWorkerFault(err error) bool {
	return CodeOf(err) == ErrCodeWorkerFault
}

// IsHalted returns true if the engine refused work because it had halted.
func IsHalted(err error) bool {
	return CodeOf(err) == ErrCodeHalted
}

func newSchemaViolation(typeName, worker string, seq int64, what string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeSchemaViolation,
		Message:  what + " does not match schema " + typeName,
		Worker:   worker,
		TypeName: typeName,
		Seq:      seq,
		Err:      cause,
	}
}

func newUnknownWorker(worker string, seq int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownWorker,
		Message: fmt.Sprintf("worker %q isn't defined", worker),
		Worker:  worker,
		Seq:     seq,
	}
}

func newInvalidConfig(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf(format, args...),
	}
}

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
