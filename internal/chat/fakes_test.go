package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
)

type memMessages struct {
	mu         sync.Mutex
	nextID     int64
	msgs       []*Message
	failCreate int
	failList   bool
}

func (m *memMessages) Create(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate > 0 {
		m.failCreate--
		return errors.New("connection refused")
	}
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	m.msgs = append(m.msgs, &cp)
	return nil
}

func (m *memMessages) FindByID(_ context.Context, id int64) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("message.get", "message", id)
}

func (m *memMessages) ListByRoom(_ context.Context, roomID int64, limit int, beforeID int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errors.New("read timeout")
	}
	var out []Message
	for _, msg := range m.msgs {
		if msg.RoomID != roomID || msg.IsDeleted || (beforeID != 0 && msg.ID >= beforeID) {
			continue
		}
		out = append(out, *msg)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

func (m *memMessages) SoftDelete(_ context.Context, id, deletedBy int64) (*Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.ID != id {
			continue
		}
		changed := !msg.IsDeleted
		if changed {
			msg.IsDeleted = true
			msg.DeletedBy = &deletedBy
		}
		cp := *msg
		return &cp, changed, nil
	}
	return nil, false, apperr.NotFound("message.delete", "message", id)
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

type fakeMembership struct {
	mu    sync.Mutex
	rooms map[int64]map[int64]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{rooms: make(map[int64]map[int64]bool)}
}

func (f *fakeMembership) add(roomID int64, userIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[roomID] == nil {
		f.rooms[roomID] = make(map[int64]bool)
	}
	for _, id := range userIDs {
		f.rooms[roomID][id] = true
	}
}

func (f *fakeMembership) CheckMember(_ context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.rooms[roomID]
	if !ok {
		return false, apperr.NotFound("room.is_member", "room", roomID)
	}
	return members[userID], nil
}

type fakeVerifier map[string]identity.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	id, ok := f[token]
	if !ok {
		return identity.Identity{}, apperr.Auth("auth.verify", "invalid token")
	}
	return id, nil
}
