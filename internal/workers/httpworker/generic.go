package httpworker

import (
	"fmt"
	"net/http"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

// Worker is the application-agnostic HTTP worker. Every request becomes
//
//	{"NewRequest": {"ConnectionId": n, "Url": "/path?query"}}
//
// and is answered by an effect {"ConnectionId": n, "StatusCode": s,
// "Payload": p}, with p written as the JSON body. An effect naming an
// unknown connection pushes {"ConnectionIdDoesntExist": null}.
type Worker struct {
	*base
	handler http.Handler
}

// New creates an unbound generic worker.
func New(opts ...Option) *Worker {
	w := &Worker{base: newBase(opts)}
	w.handler = w.router(w.serve)
	return w
}

// Factory binds the worker to an engine.
func (w *Worker) Factory() engine.WorkerFactory {
	return func(push engine.PushFunc) engine.EffectHandler {
		w.bind(push)
		return w.Handle
	}
}

// Handler returns the HTTP handler.
func (w *Worker) Handler() http.Handler {
	return w.handler
}

func (w *Worker) serve(rw http.ResponseWriter, r *http.Request) {
	id, answer := w.conns.open()
	w.await(rw, r, id, answer, ir.Tag("NewRequest", ir.NewObject(
		ir.O("ConnectionId", ir.Int(id)),
		ir.O("Url", ir.String(r.URL.RequestURI())),
	)))
}

// Handle writes the effect's payload to its connection.
func (w *Worker) Handle(payload ir.Value) {
	obj, ok := payload.(ir.Object)
	if !ok {
		panic(fmt.Sprintf("httpworker: effect must be an object, got %s", ir.KindName(payload)))
	}
	id, _ := intField(obj, "ConnectionId")
	status, _ := intField(obj, "StatusCode")

	resp, err := jsonResponse(int(status), obj["Payload"])
	if err != nil {
		panic(fmt.Sprintf("httpworker: encode payload: %v", err))
	}

	if w.conns.deliver(id, resp) {
		return
	}
	w.logger.Warn("no such connection", "connection_id", id)
	if err := w.pushCmd(ir.Tag("ConnectionIdDoesntExist", nil)); err != nil {
		w.logger.Error("command rejected", "error", err)
	}
}

// CommandSchema is the command type of the generic worker.
func CommandSchema() schema.Type {
	return schema.Variant(map[string]schema.Case{
		"NewRequest": schema.WithParam(schema.Record(map[string]schema.Type{
			"ConnectionId": schema.Int(),
			"Url":          schema.String(),
		})),
		"ConnectionIdDoesntExist": schema.NoParam(),
	})
}

// EffectSchema is the effect type of the generic worker whose response
// bodies have type payload.
func EffectSchema(payload schema.Type) schema.Type {
	return schema.Record(map[string]schema.Type{
		"ConnectionId": schema.Int(),
		"StatusCode":   schema.Int(),
		"Payload":      payload,
	})
}
