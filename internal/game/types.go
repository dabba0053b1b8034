package game

import (
	"fmt"

	"github.com/roach88/nianio/internal/ir"
)

// Worker names. They are also the top-level tags of commands and effects.
const (
	HttpWorker  = "HttpWorker"
	TimerWorker = "TimerWorker"
)

// Cell marks.
const (
	Empty    = " "
	Player   = "X"
	Opponent = "O"
)

// BoardSize is the number of cells, row-major.
const BoardSize = 9

// Status is the case of the game's status variant.
type Status string

const (
	Playing   Status = "Playing"
	UserEnded Status = "UserEnded"
	TimeOut   Status = "TimeOut"
	YouWin    Status = "YouWin"
	YouLose   Status = "YouLose"
	Tie       Status = "Tie"
)

// Description is the message sent when a client tries to start a game that
// already exists.
func (s Status) Description() string {
	switch s {
	case Playing:
		return "Game already started"
	case UserEnded:
		return "User ended this game"
	case TimeOut:
		return "Game is lost because of TimeOut"
	case YouWin:
		return "You won this game"
	case YouLose:
		return "You lost this game"
	case Tie:
		return "Game ended with tie"
	default:
		return fmt.Sprintf("Unknown game status %q", string(s))
	}
}

// Game is one entry of the state map.
type Game struct {
	Board           []string `mapstructure:"Board"`
	LastTimerCallId int64    `mapstructure:"LastTimerCallId"`
	State           Status   `mapstructure:"State"`
}

// State maps game ids to games.
type State map[string]*Game

// --- Commands ---

// Command is the closed set of commands the game accepts:
// *HttpCommand or *TimerTimeOut.
type Command interface {
	isCommand()
}

// HttpCommand is a client request, identified by the connection that waits
// for the answer.
type HttpCommand struct {
	ConnectionId int64
	GameId       string
	Action       Action
}

// Action is the closed set of client actions: StartGame, MakeMove, EndGame.
type Action interface {
	isAction()
}

// StartGame creates a new game.
type StartGame struct{}

// MakeMove places the player's mark on Cell (0-8, row-major).
type MakeMove struct {
	Cell int64
}

// EndGame abandons a running game.
type EndGame struct{}

// TimerTimeOut reports that the move timer CallId of game GameId expired.
type TimerTimeOut struct {
	GameId string `mapstructure:"GameId"`
	CallId int64  `mapstructure:"CallId"`
}

func (*HttpCommand) isCommand()  {}
func (*TimerTimeOut) isCommand() {}

func (StartGame) isAction() {}
func (MakeMove) isAction()  {}
func (EndGame) isAction()   {}

// --- Effects ---

// Effect is the closed set of effect commands the game emits:
// *SendBoardState, *SendMessage or *StartTimer.
type Effect interface {
	// Encode renders the effect in wire shape, tagged with its worker.
	Encode() ir.Value
}

// SendBoardState answers a connection with the board and status.
type SendBoardState struct {
	ConnectionId int64
	Board        []string
	State        Status
}

// SendMessage answers a connection with a status code and text.
type SendMessage struct {
	ConnectionId int64
	StatusCode   int64
	Message      string
}

// StartTimer arms the move timer for a game.
type StartTimer struct {
	GameId string
	CallId int64
}

// Encode implements Effect.
func (e *SendBoardState) Encode() ir.Value {
	return ir.Tag(HttpWorker, ir.NewObject(
		ir.O("ConnectionId", ir.Int(e.ConnectionId)),
		ir.O("Command", ir.Tag("SendBoardState", ir.NewObject(
			ir.O("Board", encodeBoard(e.Board)),
			ir.O("State", encodeStatus(e.State)),
		))),
	))
}

// Encode implements Effect.
func (e *SendMessage) Encode() ir.Value {
	return ir.Tag(HttpWorker, ir.NewObject(
		ir.O("ConnectionId", ir.Int(e.ConnectionId)),
		ir.O("Command", ir.Tag("SendMessage", ir.NewObject(
			ir.O("StatusCode", ir.Int(e.StatusCode)),
			ir.O("Message", ir.String(e.Message)),
		))),
	))
}

// Encode implements Effect.
func (e *StartTimer) Encode() ir.Value {
	return ir.Tag(TimerWorker, ir.Tag("Start", ir.NewObject(
		ir.O("GameId", ir.String(e.GameId)),
		ir.O("CallId", ir.Int(e.CallId)),
	)))
}
