package session

import (
	"sync"
	"time"

	"github.com/example/carnest-gateway/internal/form"
	"github.com/example/carnest-gateway/internal/models"
	"github.com/example/carnest-gateway/internal/observability"
)

// Form bundles everything one browser form instance owns: the draft store,
// the submission controller, the feedback notice and the session context
// they all share.
type Form struct {
	ID         string
	Auth       models.AuthSession
	Store      *form.Store
	Feedback   *form.Feedback
	Controller *form.Controller

	lastSeen time.Time
}

// Registry holds the live form instances keyed by session id. Sessions idle
// past the TTL are swept; an in-flight submission at sweep time simply has
// its late response dropped with the session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Form
	ttl      time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{sessions: make(map[string]*Form), ttl: ttl}
}

func (r *Registry) Put(f *Form) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.lastSeen = time.Now()
	r.sessions[f.ID] = f
	observability.SessionsActive.Set(float64(len(r.sessions)))
}

// Get returns the form instance and refreshes its idle clock.
func (r *Registry) Get(id string) (*Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.sessions[id]
	if ok {
		f.lastSeen = time.Now()
	}
	return f, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	observability.SessionsActive.Set(float64(len(r.sessions)))
}

// Sweep drops sessions idle past the TTL and reports how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, f := range r.sessions {
		if now.Sub(f.lastSeen) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	observability.SessionsActive.Set(float64(len(r.sessions)))
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
