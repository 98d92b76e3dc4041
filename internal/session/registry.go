package session

import (
	"sync"
	"time"
)

// maxIdle is how long a session may sit untouched before Sweep evicts it.
const maxIdle = 2 * time.Hour

// Registry tracks live controllers by session ID so transport layers (REST,
// MCP, CLI) can address them. Finalized sessions live on in storage; the
// registry only holds in-flight state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	controller *Controller
	touched    time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Add registers a controller under its session ID.
func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	r.sessions[c.ID()] = &entry{controller: c, touched: time.Now()}
	r.mu.Unlock()
}

// Get returns the controller for id, marking it as recently used.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.touched = time.Now()
	return e.controller, true
}

// Remove drops a controller, tearing down any live speech or timer state.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.controller.teardown()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle longer than maxIdle, tearing each one down.
// Intended to be called periodically by the server.
func (r *Registry) Sweep() int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*entry
	for id, e := range r.sessions {
		if e.touched.Before(cutoff) {
			stale = append(stale, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.controller.teardown()
	}
	return len(stale)
}
