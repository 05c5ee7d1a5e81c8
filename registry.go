package main

import "sync"

// Outbound is the write side of a live socket. Implementations must not
// block: they either queue the payload or fail immediately.
type Outbound interface {
	Enqueue(payload []byte) error
}

// Registry maps session identifiers to live connections. It is the
// single source of truth for who is reachable right now and the only
// state shared between connection lifecycles and dispatch, so every
// operation holds the lock. Callers never see the map itself.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Outbound
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Outbound)}
}

// Register inserts or replaces the connection for sessionID. A replaced
// connection is abandoned, not closed: it tears itself down through its
// own lifecycle.
func (r *Registry) Register(sessionID string, out Outbound) {
	r.mu.Lock()
	r.conns[sessionID] = out
	r.mu.Unlock()
}

// Unregister removes the entry if present; unknown ids are a no-op.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.conns, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Lookup(sessionID string) (Outbound, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.conns[sessionID]
	return out, ok
}

func (r *Registry) Contains(sessionID string) bool {
	_, ok := r.Lookup(sessionID)
	return ok
}
