package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/nianio/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", i+1, event.Type)
			if event.Worker != "" {
				fmt.Fprintf(&buf, " %s", event.Worker)
			}
			if event.Payload != nil {
				fmt.Fprintf(&buf, " %s", ir.MustMarshalString(event.Payload))
			}
			if event.Code != "" {
				fmt.Fprintf(&buf, " %s", event.Code)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	case AssertFatal:
		return assertFatal(result, a)
	case AssertNoFatal:
		if result.Fatal != "" {
			return &AssertionError{Type: a.Type, Expected: "no fatal error", Actual: result.Fatal, Trace: result.Trace}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func eventType(a Assertion) string {
	if a.Event == "" {
		return EventEffect
	}
	return a.Event
}

func filterEvents(trace []TraceEvent, typ, worker string) []TraceEvent {
	var out []TraceEvent
	for _, e := range trace {
		if e.Type == typ && (worker == "" || e.Worker == worker) {
			out = append(out, e)
		}
	}
	return out
}

// assertTraceContains checks if the trace contains an event matching the
// assertion's payload (subset match).
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := ir.FromNative(a.Payload)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	for _, event := range filterEvents(trace, eventType(a), a.Worker) {
		if a.Payload == nil || matchValue(event.Payload, want) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s matching %s", eventType(a), describeWorker(a.Worker), ir.MustMarshalString(want)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events matching each payload appear in the
// given order. Other events may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	events := filterEvents(trace, eventType(a), a.Worker)
	pos := 0
	for i, raw := range a.Payloads {
		want, err := ir.FromNative(raw)
		if err != nil {
			return fmt.Errorf("payloads[%d]: %w", i, err)
		}
		found := false
		for pos < len(events) {
			e := events[pos]
			pos++
			if matchValue(e.Payload, want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("%d %s events in order", len(a.Payloads), eventType(a)),
				Actual:   fmt.Sprintf("payloads[%d] %s not found after earlier matches", i, ir.MustMarshalString(want)),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if matching events occur exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := len(filterEvents(trace, eventType(a), a.Worker))
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events %s", a.Count, eventType(a), describeWorker(a.Worker)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the value at a dot-separated path of the final
// state. Object keys and array indexes are both path segments.
func assertFinalState(state ir.Value, a Assertion) error {
	want, err := ir.FromNative(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}

	got, err := lookupPath(state, a.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("a value at %q", a.Path),
			Actual:   err.Error(),
		}
	}
	if !matchValue(got, want) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%q = %s", a.Path, ir.MustMarshalString(want)),
			Actual:   fmt.Sprintf("%q = %s", a.Path, ir.MustMarshalString(got)),
		}
	}
	return nil
}

func assertFatal(result *Result, a Assertion) error {
	if result.Fatal == "" {
		return &AssertionError{Type: AssertFatal, Expected: "a fatal error", Actual: "engine did not halt", Trace: result.Trace}
	}
	if a.Code != "" && a.Code != result.Fatal {
		return &AssertionError{Type: AssertFatal, Expected: a.Code, Actual: result.Fatal, Trace: result.Trace}
	}
	return nil
}

func lookupPath(v ir.Value, path string) (ir.Value, error) {
	if path == "" {
		return v, nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case ir.Object:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("key %q not found", seg)
			}
			cur = next
		case ir.Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range for array of %d", seg, len(node))
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("segment %q: can't index %s", seg, ir.KindName(cur))
		}
	}
	return cur, nil
}

// matchValue reports whether actual contains expected. Objects match when
// every expected key matches; extra keys in actual are ignored. Arrays and
// scalars must match exactly (arrays element-wise by the same rule).
func matchValue(actual, expected ir.Value) bool {
	switch exp := expected.(type) {
	case ir.Object:
		act, ok := actual.(ir.Object)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, ok := act[k]
			if !ok || !matchValue(av, ev) {
				return false
			}
		}
		return true
	case ir.Array:
		act, ok := actual.(ir.Array)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(act[i], exp[i]) {
				return false
			}
		}
		return true
	default:
		return ir.Equal(actual, expected)
	}
}

func describeWorker(worker string) string {
	if worker == "" {
		return "from any worker"
	}
	return "from " + worker
}
