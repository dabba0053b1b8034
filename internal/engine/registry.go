package engine

import (
	"sort"

	"github.com/roach88/nianio/internal/ir"
)

// PushFunc submits a raw command on behalf of one worker.
// The engine tags it with the worker's name, validates it against the
// command schema and appends it to the backlog. A non-nil error means the
// command was rejected and the engine has halted.
type PushFunc func(payload ir.Value) error

// EffectHandler receives the payload of every effect command addressed to
// its worker. It runs synchronously on the draining goroutine.
type EffectHandler func(payload ir.Value)

// WorkerFactory builds a worker once, at engine start.
// push is scoped to the worker's name and may be retained and called from
// any goroutine, including during the factory call itself.
type WorkerFactory func(push PushFunc) EffectHandler

// registry binds worker names to effect handlers.
//
// names is complete before any factory runs so pushes made during
// construction can be checked. handlers is only read after the backlog opens.
type registry struct {
	names    map[string]struct{}
	handlers map[string]EffectHandler
}

func newRegistry(factories map[string]WorkerFactory) *registry {
	r := &registry{
		names:    make(map[string]struct{}, len(factories)),
		handlers: make(map[string]EffectHandler, len(factories)),
	}
	for name := range factories {
		r.names[name] = struct{}{}
	}
	return r
}

func (r *registry) has(name string) bool {
	_, ok := r.names[name]
	return ok
}

func (r *registry) handler(name string) (EffectHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *registry) bind(name string, h EffectHandler) {
	r.handlers[name] = h
}

// Names returns worker names in the order they are constructed.
func (r *registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
