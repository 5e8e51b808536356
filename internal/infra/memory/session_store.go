package memory

import (
	"sort"
	"sync"

	"trivia-engine/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRegistry.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]app.Runner
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]app.Runner),
	}
}

func (s *SessionStore) Put(r app.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[r.ID()] = r
}

func (s *SessionStore) Get(id string) (app.Runner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sessions[id]
	return r, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// List returns live runners ordered by handle.
func (s *SessionStore) List() []app.Runner {
	s.mu.RLock()
	out := make([]app.Runner, 0, len(s.sessions))
	for _, r := range s.sessions {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
