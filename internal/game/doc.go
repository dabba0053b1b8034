// Package game is a tic-tac-toe played over HTTP against an opponent that
// always takes the first free cell.
//
// The game is a pure transition function over a map of games keyed by the
// client-chosen id. Commands arrive from two workers:
//
//	{"HttpWorker": {"ConnectionId": 1, "GameId": "g", "Command": {"MakeMove": 4}}}
//	{"TimerWorker": {"TimeOut": {"GameId": "g", "CallId": 3}}}
//
// Each move bumps the game's LastTimerCallId and arms a new timer with it.
// A TimeOut whose CallId is no longer current is ignored, which is how a
// stale timer is cancelled without engine support.
//
// The wire shapes are declared in schema.cue and checked by the engine.
// Transition decodes them into the typed commands of this package, so the
// game logic in Apply works on Go structs rather than raw values.
package game
