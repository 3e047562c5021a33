package chat

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"campus-hub/internal/identity"
)

// Session is one live connection of an identified user. Outbound payloads
// are queued on a bounded buffer drained by the connection's write pump.
type Session struct {
	ID       string
	Identity identity.Identity

	mu     sync.Mutex
	send   chan []byte
	rooms  map[int64]struct{}
	closed bool
	done   chan struct{}
}

func newSession(id identity.Identity, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:       uuid.NewString(),
		Identity: id,
		send:     make(chan []byte, buffer),
		rooms:    make(map[int64]struct{}),
		done:     make(chan struct{}),
	}
}

// Deliver queues payload without blocking. It returns false when the
// buffer is full or the session is closed.
func (s *Session) Deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Outbound is drained by the write pump. It is closed with the session.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Rooms lists the rooms this session is subscribed to, ascending.
func (s *Session) Rooms() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Session) subscribed(roomID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	close(s.done)
	return true
}
