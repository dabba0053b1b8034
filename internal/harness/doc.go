// Package harness runs scripted scenarios against a real engine.
//
// A scenario pushes commands on behalf of workers and checks what the
// engine did: the effects each drain dispatched, the trace of every
// enqueue, step, effect and fatal event, and the final state. Workers are
// stubs, so the transition function is the only thing under test.
//
// # Scenario Format
//
//	name: game_win
//	description: "X completes the middle column"
//	app: game                  # optional, default "game"
//	schema: other.cue          # optional, relative to the scenario file
//	initial_state: {}          # optional
//	steps:
//	  - push: HttpWorker
//	    payload: {ConnectionId: 1, GameId: g, Command: {StartGame: null}}
//	    expect:
//	      effects:
//	        - HttpWorker: {ConnectionId: 1, Command: {SendMessage: {...}}}
//	        - TimerWorker: {Start: {GameId: g, CallId: 0}}
//	  - push: TimerWorker
//	    payload: {TimeOut: {GameId: g, CallId: 0}}
//	    hold: true             # leave the drain pending
//	assertions:
//	  - type: final_state
//	    path: g.State
//	    expect: {YouWin: null}
//
// A held step leaves its command in the backlog. The next step that isn't
// held drains everything, most recent push first, which is how scenarios
// exercise several pushes landing in one drain.
//
// # Assertion Types
//
//   - trace_contains: an event of the given type (default effect) matches a payload
//   - trace_order: events match a list of payloads in order
//   - trace_count: events of the given type occur exactly N times
//   - final_state: the state value at a dot path matches (subset on objects)
//   - fatal: the engine halted, optionally with a given error code
//   - no_fatal: the engine did not halt
//
// # Deterministic Testing
//
// Every run uses a testutil.ManualHost and a fixed run id, so the same
// scenario always yields byte-identical traces. RunWithGolden compares the
// canonical JSON of the trace against testdata/golden.
package harness
