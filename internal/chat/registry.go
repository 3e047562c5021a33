package chat

import "sync"

// Registry maps rooms to their subscribed sessions. Readers get snapshots
// so fan-out never holds the lock while delivering.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[int64]map[*Session]struct{}
	sessions map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[int64]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
	}
}

// Track records a live session.
func (r *Registry) Track(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

// Add subscribes s to roomID. It reports false if s is already closed.
func (r *Registry) Add(roomID int64, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	subs, ok := r.rooms[roomID]
	if !ok {
		subs = make(map[*Session]struct{})
		r.rooms[roomID] = subs
	}
	subs[s] = struct{}{}
	s.rooms[roomID] = struct{}{}
	return true
}

// Remove unsubscribes s from roomID and reports whether it was subscribed.
func (r *Registry) Remove(roomID int64, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	_, ok := s.rooms[roomID]
	delete(s.rooms, roomID)
	s.mu.Unlock()

	r.unsubscribe(roomID, s)
	return ok
}

func (r *Registry) unsubscribe(roomID int64, s *Session) {
	subs, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(r.rooms, roomID)
	}
}

// Drop closes s and removes it from every room. Only the first call for a
// session has any effect; it reports whether this call was that one.
func (r *Registry) Drop(s *Session) bool {
	if !s.close() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[int64]struct{})
	s.mu.Unlock()

	for roomID := range rooms {
		r.unsubscribe(roomID, s)
	}
	delete(r.sessions, s)
	return true
}

// Subscribers returns a snapshot of the sessions subscribed to roomID.
func (r *Registry) Subscribers(roomID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.rooms[roomID]
	out := make([]*Session, 0, len(subs))
	for s := range subs {
		out = append(out, s)
	}
	return out
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RoomCount is the number of rooms with at least one subscriber.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Sessions returns a snapshot of every live session.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}
