package game

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/nianio/internal/ir"
)

var statusType = reflect.TypeOf(Status(""))

// statusHook turns the wire variant {"Playing": null} into Status("Playing").
func statusHook(from, to reflect.Type, data any) (any, error) {
	if to != statusType || from.Kind() != reflect.Map {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("status must be a single-key object, got %v", data)
	}
	for k := range m {
		return Status(k), nil
	}
	return data, nil
}

// decodeInto decodes a validated wire value into a Go struct.
// Unknown fields are errors so the struct stays aligned with the schema.
func decodeInto(v ir.Value, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.DecodeHookFuncType(statusHook),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(ir.ToNative(v))
}

// DecodeState converts the wire state into typed games.
func DecodeState(v ir.Value) (State, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("state must be an object, got %s", ir.KindName(v))
	}

	state := make(State, len(obj))
	for _, id := range obj.SortedKeys() {
		var g Game
		if err := decodeInto(obj[id], &g); err != nil {
			return nil, fmt.Errorf("game %q: %w", id, err)
		}
		if len(g.Board) != BoardSize {
			return nil, fmt.Errorf("game %q: board has %d cells, want %d", id, len(g.Board), BoardSize)
		}
		state[id] = &g
	}
	return state, nil
}

// EncodeState converts typed games back to the wire state.
func EncodeState(s State) ir.Value {
	obj := make(ir.Object, len(s))
	for id, g := range s {
		obj[id] = ir.NewObject(
			ir.O("Board", encodeBoard(g.Board)),
			ir.O("LastTimerCallId", ir.Int(g.LastTimerCallId)),
			ir.O("State", encodeStatus(g.State)),
		)
	}
	return obj
}

// httpPayload is the record carried by HttpWorker commands.
type httpPayload struct {
	ConnectionId int64          `mapstructure:"ConnectionId"`
	GameId       string         `mapstructure:"GameId"`
	Command      map[string]any `mapstructure:"Command"`
}

// DecodeCommand converts a tagged wire command into a typed Command.
func DecodeCommand(v ir.Value) (Command, error) {
	worker, payload, err := ir.Untag(v)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}

	switch worker {
	case HttpWorker:
		var p httpPayload
		if err := decodeInto(payload, &p); err != nil {
			return nil, fmt.Errorf("%s command: %w", worker, err)
		}
		action, err := decodeAction(p.Command)
		if err != nil {
			return nil, fmt.Errorf("%s command: %w", worker, err)
		}
		return &HttpCommand{ConnectionId: p.ConnectionId, GameId: p.GameId, Action: action}, nil

	case TimerWorker:
		tag, body, err := ir.Untag(payload)
		if err != nil {
			return nil, fmt.Errorf("%s command: %w", worker, err)
		}
		if tag != "TimeOut" {
			return nil, fmt.Errorf("%s command: unknown case %q", worker, tag)
		}
		var t TimerTimeOut
		if err := decodeInto(body, &t); err != nil {
			return nil, fmt.Errorf("%s command: %w", worker, err)
		}
		return &t, nil

	default:
		return nil, fmt.Errorf("command from unknown worker %q", worker)
	}
}

func decodeAction(m map[string]any) (Action, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("action must have exactly one case, got %d", len(m))
	}
	for tag, arg := range m {
		switch tag {
		case "StartGame":
			return StartGame{}, nil
		case "EndGame":
			return EndGame{}, nil
		case "MakeMove":
			cell, ok := arg.(int64)
			if !ok {
				return nil, fmt.Errorf("MakeMove takes an int, got %T", arg)
			}
			return MakeMove{Cell: cell}, nil
		default:
			return nil, fmt.Errorf("unknown action %q", tag)
		}
	}
	panic("unreachable")
}

func encodeBoard(b []string) ir.Array {
	arr := make(ir.Array, len(b))
	for i, c := range b {
		arr[i] = ir.String(c)
	}
	return arr
}

func encodeStatus(s Status) ir.Value {
	return ir.Tag(string(s), nil)
}
