package httpworker

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
)

// Name is the worker name both HTTP workers register under.
const Name = "HttpWorker"

var errNotBound = errors.New("worker is not bound to an engine")

// Option configures a worker.
type Option func(*base)

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// base is the part shared by the game and generic workers: the connection
// table, the bound push function and the router.
type base struct {
	logger *slog.Logger
	conns  *connTable

	mu   sync.RWMutex
	push engine.PushFunc
}

func newBase(opts []Option) *base {
	b := &base{logger: slog.Default(), conns: newConnTable()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("worker", Name)
	return b
}

func (b *base) bind(push engine.PushFunc) {
	b.mu.Lock()
	b.push = push
	b.mu.Unlock()
}

func (b *base) pushCmd(cmd ir.Value) error {
	b.mu.RLock()
	push := b.push
	b.mu.RUnlock()
	if push == nil {
		return errNotBound
	}
	return push(cmd)
}

func (b *base) router(serve http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.HandleFunc("/*", serve)
	return r
}

// await submits cmd for connection id and writes whatever answer the engine
// sends back. If the client leaves first the connection is forgotten.
func (b *base) await(w http.ResponseWriter, r *http.Request, id int64, answer <-chan response, cmd ir.Value) {
	if err := b.pushCmd(cmd); err != nil {
		b.conns.forget(id)
		b.logger.Error("command rejected", "connection_id", id, "error", err)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	select {
	case resp := <-answer:
		resp.write(w)
	case <-r.Context().Done():
		b.conns.forget(id)
		b.logger.Debug("client went away", "connection_id", id)
	}
}

// Pending returns the number of requests waiting for an answer.
func (b *base) Pending() int {
	return b.conns.Len()
}

// Close unbinds the worker and answers every waiting request with 503.
// Requests arriving afterwards get 503 straight away. Used on shutdown.
func (b *base) Close() {
	b.bind(nil)
	b.conns.closeAll(response{
		status:      http.StatusServiceUnavailable,
		contentType: "text/plain; charset=utf-8",
		body:        []byte("Service unavailable\n"),
	})
}

func jsonResponse(status int, v ir.Value) (response, error) {
	body, err := ir.Marshal(v)
	if err != nil {
		return response{}, err
	}
	return response{status: status, contentType: "application/json", body: body}, nil
}

func intField(obj ir.Object, name string) (int64, bool) {
	n, ok := obj[name].(ir.Int)
	return int64(n), ok
}
