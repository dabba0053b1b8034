package store

import (
	"time"

	"github.com/roach88/nianio/internal/ir"
)

// timeFormat is fixed-width so started_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one engine run, from Start to process exit or halt.
type Run struct {
	ID           string
	StartedAt    time.Time
	Workers      []string
	InitialState ir.Value
	StateHash    string
}

// Step is one applied command. State is the state after the command.
type Step struct {
	RunID     string
	Seq       int64
	Worker    string
	Command   ir.Value
	State     ir.Value
	StateHash string
	Effects   int
	Duration  time.Duration
}

// Effect is one dispatched effect command payload.
type Effect struct {
	RunID    string
	Seq      int64
	Index    int
	Worker   string
	Payload  ir.Value
	Duration time.Duration
}

// Fault is the error that halted a run.
type Fault struct {
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
