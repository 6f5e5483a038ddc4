package session

import (
	"log"
	"sync"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/interfaces"
)

// Registry tracks live sessions by id. Sessions are inserted on first
// contact and removed only after their background tasks have drained,
// so an image completing after its turn can still attempt delivery.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg  config.GameConfig
	deps Deps
}

func NewRegistry(cfg config.GameConfig, deps Deps) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		deps:     deps,
	}
}

// GetOrCreate returns the session for id, creating it on first
// contact. An existing session is re-attached to the new connection.
func (r *Registry) GetOrCreate(id string, conn interfaces.Conn) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Attach(conn)
		log.Printf("[Registry] session %s reattached", id)
		return s, false
	}
	s := New(id, conn, r.cfg, r.deps)
	r.sessions[id] = s
	log.Printf("[Registry] session %s created (%d live)", id, len(r.sessions))
	return s, true
}

// Get returns a live session, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove cancels the session's background work, waits for it to
// drain, then drops the session. Safe to call for an unknown id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return
	}

	s.Close()
	s.Drain()

	r.mu.Lock()
	delete(r.sessions, id)
	remaining := len(r.sessions)
	r.mu.Unlock()
	log.Printf("[Registry] session %s removed (%d live)", id, remaining)
}

// Release removes the session, but only when conn is still its active
// connection. A receive loop whose socket was superseded by a
// reconnect exits without tearing the session down.
func (r *Registry) Release(id string, conn interfaces.Conn) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	if !s.usingConn(conn) {
		log.Printf("[Registry] session %s kept alive for a newer connection", id)
		return
	}
	r.Remove(id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown drains and removes every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Remove(id)
	}
}
