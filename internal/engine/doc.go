// Package engine implements the nianio runtime: a pure transition function
// driven by a command backlog, with every side effect delegated to workers.
//
// ARCHITECTURE:
//
// Workers push raw commands. Each command is tagged with the worker's name
// ({"HttpWorker": {...}}), validated against the "cmd" schema root and
// pushed onto the backlog. The first push into an idle engine asks the Host
// for a deferred drain; later pushes only grow the backlog.
//
// A drain pops commands last-in first-out. For each one it:
//  1. calls the transition with a private copy of state and command
//  2. validates the returned state against "state"
//  3. validates every effect command against "extCmd" and resolves its worker
//  4. replaces the state
//  5. calls each effect handler in the order the transition returned them
//
// Handlers run synchronously on the draining goroutine. Commands they push
// are applied by the same drain, never by a nested one.
//
// FAILURE:
//
// A schema violation, an unknown worker, a failing transition or a panicking
// handler halts the engine. The error is reported once through
// Host.TerminateOnFatal. State is never partially replaced: every check of
// steps 1-3 happens before step 4. There is no retry and no rollback of
// states already applied.
//
// HOSTS:
//
// LoopHost runs deferred drains on one goroutine, like an event loop.
// testutil.ManualHost lets tests decide when drains run.
package engine
