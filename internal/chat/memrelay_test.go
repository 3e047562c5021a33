package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRelay connects relays in one process. Tests use it to stand in for
// several instances sharing a broker.
type MemoryRelay struct {
	bus    *MemoryBus
	origin string
}

type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]chan envelope
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]chan envelope)}
}

func (b *MemoryBus) Relay() *MemoryRelay {
	origin := uuid.NewString()
	b.mu.Lock()
	b.subs[origin] = make(chan envelope, 256)
	b.mu.Unlock()
	return &MemoryRelay{bus: b, origin: origin}
}

func (m *MemoryRelay) Publish(_ context.Context, roomID int64, payload []byte) error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	for origin, ch := range m.bus.subs {
		if origin == m.origin {
			continue
		}
		ch <- envelope{Origin: m.origin, RoomID: roomID, Payload: payload}
	}
	return nil
}

func (m *MemoryRelay) Run(ctx context.Context, deliver func(roomID int64, payload []byte)) error {
	m.bus.mu.Lock()
	ch := m.bus.subs[m.origin]
	m.bus.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ch:
			deliver(env.RoomID, env.Payload)
		}
	}
}
