package httpworker

import (
	"net/http"
	"sync"
)

// response is what an effect writes back to a waiting request.
type response struct {
	status      int
	contentType string
	body        []byte
}

func (r response) write(w http.ResponseWriter) {
	if r.contentType != "" {
		w.Header().Set("Content-Type", r.contentType)
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body)
}

// connTable hands out connection ids and routes responses to the request
// goroutine waiting for them. Ids are never reused.
type connTable struct {
	mu    sync.Mutex
	next  int64
	conns map[int64]chan response
}

func newConnTable() *connTable {
	return &connTable{conns: make(map[int64]chan response)}
}

// open registers a new connection.
func (t *connTable) open() (int64, <-chan response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	ch := make(chan response, 1)
	t.conns[id] = ch
	return id, ch
}

// forget drops a connection whose client went away.
func (t *connTable) forget(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
}

// deliver answers connection id. It reports false if the id is unknown or
// was already answered.
func (t *connTable) deliver(id int64, r response) bool {
	t.mu.Lock()
	ch, ok := t.conns[id]
	delete(t.conns, id)
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- r
	return true
}

// closeAll answers every open connection with r.
func (t *connTable) closeAll(r response) {
	t.mu.Lock()
	conns := t.conns
	t.conns = make(map[int64]chan response)
	t.mu.Unlock()
	for _, ch := range conns {
		ch <- r
	}
}

// Len returns the number of connections waiting for an answer.
func (t *connTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
