package registry

import (
	"context"
	"sort"
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Registry maps upload identifiers to live sessions. A session removed by
// completion or cancellation is held as draining until it is released, and
// no new session is created for its identifier in the meantime.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	draining map[string]*Session
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		draining: make(map[string]*Session),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// GetOrCreate returns the live session for id, or registers the session
// returned by init. Concurrent callers for a new id all observe the same
// session. When the id is draining the call blocks until it is released or
// ctx is done. The boolean return is true when the session was created.
func (r *Registry) GetOrCreate(ctx context.Context, id string, init func() *Session) (*Session, bool, error) {
	for {
		r.mu.Lock()
		if s, exists := r.sessions[id]; exists {
			r.mu.Unlock()
			return s, false, nil
		}
		if d, exists := r.draining[id]; exists {
			r.mu.Unlock()
			select {
			case <-d.Done():
				continue
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}
		s := init()
		r.sessions[id] = s
		r.mu.Unlock()
		return s, true, nil
	}
}

// Get returns the live session for id
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[id]
	return s, exists
}

// Remove removes the live session for id, which becomes draining
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[id]
	if !exists {
		return nil, false
	}
	r.drain(id, s)
	return s, true
}

// CompareAndRemove removes the session for id only if it is s, returning
// true if it was removed. Exactly one of any number of concurrent callers
// with the same session succeeds.
func (r *Registry) CompareAndRemove(id string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, exists := r.sessions[id]; !exists || current != s {
		return false
	}
	r.drain(id, s)
	return true
}

// Release ends the draining period of a removed session
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	if current, exists := r.draining[s.Id()]; exists && current == s {
		delete(r.draining, s.Id())
	}
	r.mu.Unlock()
	s.release()
}

// List returns the live sessions ordered by creation time
func (r *Registry) List() []*Session {
	r.mu.Lock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt().Equal(result[j].CreatedAt()) {
			return result[i].Id() < result[j].Id()
		}
		return result[i].CreatedAt().Before(result[j].CreatedAt())
	})
	return result
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (r *Registry) drain(id string, s *Session) {
	delete(r.sessions, id)
	r.draining[id] = s
}
