package handler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pavelanni/studyaide/internal/conversation"
)

// entry pairs a session with its own lock. Operations on one session are
// serialized; different sessions proceed in parallel.
type entry struct {
	mu      sync.Mutex
	session *conversation.Session
}

// Registry holds live sessions keyed by ID.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add stores a session under a fresh ID.
func (r *Registry) Add(s *conversation.Session) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = &entry{session: s}
	r.mu.Unlock()
	return id
}

// Acquire locks the session with the given ID and returns it together with
// its release function. The second return is false when the ID is unknown.
func (r *Registry) Acquire(id string) (*conversation.Session, func(), bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	e.mu.Lock()
	return e.session, e.mu.Unlock, true
}

// Remove drops a session from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
