package game

import (
	"fmt"
	"net/http"

	"github.com/roach88/nianio/internal/ir"
)

// InitialState is the state the game starts from: no games.
func InitialState() ir.Value {
	return ir.Object{}
}

// Transition is the engine transition function for the game. It decodes the
// wire values, applies the command and encodes the result.
func Transition(state, cmd ir.Value) (ir.Value, []ir.Value, error) {
	s, err := DecodeState(state)
	if err != nil {
		return nil, nil, err
	}
	c, err := DecodeCommand(cmd)
	if err != nil {
		return nil, nil, err
	}

	effects := Apply(s, c)

	out := make([]ir.Value, len(effects))
	for i, e := range effects {
		out[i] = e.Encode()
	}
	return EncodeState(s), out, nil
}

// Apply mutates s according to cmd and returns the effects to dispatch.
func Apply(s State, cmd Command) []Effect {
	switch c := cmd.(type) {
	case *HttpCommand:
		switch a := c.Action.(type) {
		case StartGame:
			return startGame(s, c)
		case MakeMove:
			return makeMove(s, c, a.Cell)
		case EndGame:
			return endGame(s, c)
		}
	case *TimerTimeOut:
		timeOut(s, c)
		return nil
	}
	panic(fmt.Sprintf("game: unhandled command %T", cmd))
}

func startGame(s State, c *HttpCommand) []Effect {
	if g, ok := s[c.GameId]; ok {
		return []Effect{message(c, http.StatusBadRequest, g.State.Description())}
	}

	s[c.GameId] = &Game{Board: NewBoard(), State: Playing}
	return []Effect{
		message(c, http.StatusOK, "Game started"),
		&StartTimer{GameId: c.GameId, CallId: 0},
	}
}

func makeMove(s State, c *HttpCommand, cell int64) []Effect {
	g, ok := s[c.GameId]
	if !ok {
		return []Effect{message(c, http.StatusBadRequest, "Game not started")}
	}
	if g.State != Playing {
		return []Effect{boardState(c, g)}
	}

	// Any move, valid or not, invalidates the running timer.
	g.LastTimerCallId++
	timer := &StartTimer{GameId: c.GameId, CallId: g.LastTimerCallId}

	if !canPlace(g.Board, cell) {
		return []Effect{message(c, http.StatusBadRequest, "Invalid Move"), timer}
	}

	g.Board[cell] = Player
	g.State = Evaluate(g.Board)
	if g.State == Playing {
		opponentMove(g.Board)
		g.State = Evaluate(g.Board)
	}
	return []Effect{boardState(c, g), timer}
}

func endGame(s State, c *HttpCommand) []Effect {
	g, ok := s[c.GameId]
	switch {
	case !ok:
		return []Effect{message(c, http.StatusBadRequest, "Game not started")}
	case g.State == Playing:
		g.State = UserEnded
		return []Effect{message(c, http.StatusOK, "Game ended")}
	default:
		return []Effect{message(c, http.StatusBadRequest, "Game already ended")}
	}
}

// timeOut ends the game if the timer that fired is still the current one.
func timeOut(s State, c *TimerTimeOut) {
	g, ok := s[c.GameId]
	if !ok || g.State != Playing || g.LastTimerCallId != c.CallId {
		return
	}
	g.State = TimeOut
}

func message(c *HttpCommand, code int64, text string) *SendMessage {
	return &SendMessage{ConnectionId: c.ConnectionId, StatusCode: code, Message: text}
}

func boardState(c *HttpCommand, g *Game) *SendBoardState {
	board := make([]string, len(g.Board))
	copy(board, g.Board)
	return &SendBoardState{ConnectionId: c.ConnectionId, Board: board, State: g.State}
}
