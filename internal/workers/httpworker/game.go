package httpworker

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
)

// GameWorker serves the tic-tac-toe game:
//
//	GET /?id=<game>&action=start
//	GET /?id=<game>&action=move&move=<0-8>
//	GET /?id=<game>&action=end
//
// Each valid request becomes one command; the request is answered by the
// SendBoardState or SendMessage effect that names its connection.
type GameWorker struct {
	*base
	handler http.Handler
}

// NewGameWorker creates an unbound game worker.
func NewGameWorker(opts ...Option) *GameWorker {
	w := &GameWorker{base: newBase(opts)}
	w.handler = w.router(w.serve)
	return w
}

// Factory binds the worker to an engine.
func (w *GameWorker) Factory() engine.WorkerFactory {
	return func(push engine.PushFunc) engine.EffectHandler {
		w.bind(push)
		return w.Handle
	}
}

// Handler returns the HTTP handler.
func (w *GameWorker) Handler() http.Handler {
	return w.handler
}

func (w *GameWorker) serve(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("id") || !q.Has("action") {
		http.Error(rw, "No id or action param", http.StatusBadRequest)
		return
	}

	var command ir.Value
	switch q.Get("action") {
	case "start":
		command = ir.Tag("StartGame", nil)
	case "end":
		command = ir.Tag("EndGame", nil)
	case "move":
		if !q.Has("move") {
			http.Error(rw, "No move param", http.StatusBadRequest)
			return
		}
		cell, err := strconv.ParseInt(q.Get("move"), 10, 64)
		if err != nil {
			http.Error(rw, "Bad move param", http.StatusBadRequest)
			return
		}
		command = ir.Tag("MakeMove", ir.Int(cell))
	default:
		http.Error(rw, "Bad action", http.StatusBadRequest)
		return
	}

	id, answer := w.conns.open()
	w.await(rw, r, id, answer, ir.NewObject(
		ir.O("ConnectionId", ir.Int(id)),
		ir.O("GameId", ir.String(q.Get("id"))),
		ir.O("Command", command),
	))
}

// Handle answers the connection named by the effect. Effects for
// connections that are gone are dropped.
func (w *GameWorker) Handle(payload ir.Value) {
	obj, ok := payload.(ir.Object)
	if !ok {
		panic(fmt.Sprintf("httpworker: effect must be an object, got %s", ir.KindName(payload)))
	}
	id, ok := intField(obj, "ConnectionId")
	if !ok {
		panic("httpworker: effect has no ConnectionId")
	}
	tag, arg, err := ir.Untag(obj["Command"])
	if err != nil {
		panic(fmt.Sprintf("httpworker: %v", err))
	}

	var resp response
	switch tag {
	case "SendBoardState":
		resp, err = jsonResponse(http.StatusOK, arg)
	case "SendMessage":
		fields, _ := arg.(ir.Object)
		status, _ := intField(fields, "StatusCode")
		resp, err = jsonResponse(int(status), ir.Object{"Message": fields["Message"]})
	default:
		panic(fmt.Sprintf("httpworker: unknown command %q", tag))
	}
	if err != nil {
		panic(fmt.Sprintf("httpworker: encode %s: %v", tag, err))
	}

	if !w.conns.deliver(id, resp) {
		w.logger.Warn("no such connection, dropping answer", "connection_id", id, "command", tag)
	}
}
