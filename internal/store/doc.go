// Package store is the SQLite journal of engine runs.
//
// The journal is append-only and records, per run:
//   - runs: run id, start time, worker names and the initial state
//   - steps: every applied command with the state it produced
//   - effects: every dispatched effect payload
//   - faults: the error that halted the run, if any
//
// Journal adapts the store to engine.Hooks. Replay re-applies a run's
// commands to check that a transition function reproduces the recorded
// states. The journal is never used to restore a running engine.
//
// # Ordering
//
// Steps are keyed by (run_id, seq) where seq is the engine's step counter,
// never a timestamp. Every query orders by seq so reads are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
