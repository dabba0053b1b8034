package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario drives an engine through a fixed sequence of pushes and checks
// the effects, the final state and any fatal error.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// App is the registered application under test. Default: "game".
	App string `yaml:"app,omitempty"`

	// Schema optionally replaces the app's schema with a CUE or JSON file,
	// relative to the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// InitialState optionally replaces the app's initial state.
	InitialState any `yaml:"initial_state,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, fatal, no_fatal
	Assertions []Assertion `yaml:"assertions"`

	// RunID is the fixed run id. Default: "test-run".
	RunID string `yaml:"run_id,omitempty"`
}

// Step pushes one command on behalf of a worker.
type Step struct {
	// Push is the worker name the command comes from.
	Push string `yaml:"push"`

	// Payload is the raw command payload, before tagging.
	Payload any `yaml:"payload"`

	// Hold leaves the drain scheduled instead of running it, so several
	// pushes can sit in the backlog together.
	Hold bool `yaml:"hold,omitempty"`

	// Expect checks what the drain after this step did.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of one drain.
type Expect struct {
	// Effects is the exact list of effect commands dispatched, tagged with
	// their worker, in dispatch order.
	Effects []any `yaml:"effects"`

	// Fatal is the expected error code if the drain halted the engine.
	Fatal string `yaml:"fatal,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event type for Worker matches Payload
	// - "trace_order": events of Event type match Payloads in order
	// - "trace_count": Event type for Worker occurs exactly Count times
	// - "final_state": the value at Path matches Expect
	// - "fatal": the engine halted, with Code if given
	// - "no_fatal": the engine did not halt
	Type string `yaml:"type"`

	// Event is the trace event type: enqueue, step, effect (default: effect).
	Event string `yaml:"event,omitempty"`

	// Worker filters events by worker name.
	Worker string `yaml:"worker,omitempty"`

	// Payload is the expected payload (subset match on objects).
	Payload any `yaml:"payload,omitempty"`

	// Payloads are the expected payloads in order (used by trace_order).
	Payloads []any `yaml:"payloads,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Path is a dot-separated path into the final state; empty is the root.
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value at Path (subset match on objects).
	Expect any `yaml:"expect,omitempty"`

	// Code is the expected fatal error code.
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertFatal         = "fatal"
	AssertNoFatal       = "no_fatal"
)

// LoadScenario reads and parses a scenario YAML file. A relative schema
// path is resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Push == "" {
			return fmt.Errorf("steps[%d]: push is required", i)
		}
		if step.Hold && step.Expect != nil {
			return fmt.Errorf("steps[%d]: expect needs a drain and can't be combined with hold", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Event {
	case "", EventEnqueue, EventStep, EventEffect:
	default:
		return fmt.Errorf("assertions[%d]: unknown event %q", index, a.Event)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Payload == nil && a.Worker == "" {
			return fmt.Errorf("assertions[%d]: worker or payload is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Payloads) == 0 {
			return fmt.Errorf("assertions[%d]: payloads list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertFatal, AssertNoFatal:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
