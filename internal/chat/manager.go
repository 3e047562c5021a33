package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
)

var ErrSessionClosed = errors.New("chat: session closed")

// HistoryReader serves the replay part of a resync.
type HistoryReader interface {
	History(ctx context.Context, actor identity.Identity, roomID int64, limit int, beforeID int64) ([]Message, error)
}

// Manager owns the lifecycle of sessions and their room subscriptions.
type Manager struct {
	verifier   identity.Verifier
	members    Membership
	registry   *Registry
	history    HistoryReader
	sendBuffer int
	log        *zap.Logger
}

func NewManager(verifier identity.Verifier, members Membership, registry *Registry, history HistoryReader,
	sendBuffer int, log *zap.Logger) *Manager {
	return &Manager{
		verifier:   verifier,
		members:    members,
		registry:   registry,
		history:    history,
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// Authenticate verifies token and opens a session for its owner.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperr.Auth("session.connect", "missing authentication token")
	}
	id, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.Open(id), nil
}

// Open starts a session for an identity the caller already verified.
func (m *Manager) Open(id identity.Identity) *Session {
	s := newSession(id, m.sendBuffer)
	m.registry.Track(s)
	m.log.Info("session_opened",
		zap.String("session_id", s.ID),
		zap.Int64("user_id", id.UserID),
		zap.String("username", id.Username),
	)
	return s
}

// JoinRoom subscribes s to roomID's live events. Only room members may
// subscribe.
func (m *Manager) JoinRoom(ctx context.Context, s *Session, roomID int64) error {
	const op = "session.join"
	ok, err := m.members.CheckMember(ctx, roomID, s.Identity.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden(op, "not a member of this room")
	}
	if !m.registry.Add(roomID, s) {
		return ErrSessionClosed
	}
	m.log.Debug("session_joined", zap.String("session_id", s.ID), zap.Int64("room_id", roomID))
	return nil
}

// LeaveRoom reports whether s was subscribed to roomID.
func (m *Manager) LeaveRoom(s *Session, roomID int64) bool {
	return m.registry.Remove(roomID, s)
}

// Disconnect ends s. Calling it more than once is harmless.
func (m *Manager) Disconnect(s *Session) {
	if m.registry.Drop(s) {
		m.log.Info("session_closed", zap.String("session_id", s.ID), zap.Int64("user_id", s.Identity.UserID))
	}
}

// Resync re-subscribes s to roomIDs and replays up to limit recent messages
// of each. A room that fails does not stop the others.
func (m *Manager) Resync(ctx context.Context, s *Session, roomIDs []int64, limit int) []RoomReplay {
	seen := make(map[int64]struct{}, len(roomIDs))
	out := make([]RoomReplay, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if _, dup := seen[roomID]; dup {
			continue
		}
		seen[roomID] = struct{}{}

		replay := RoomReplay{RoomID: roomID, Messages: []Message{}}
		msgs, err := m.JoinAndReplay(ctx, s, roomID, limit)
		if err != nil {
			body := apperr.ToBody(err)
			replay.Error = &body
		} else {
			replay.Messages = msgs
		}
		out = append(out, replay)
	}
	return out
}

// JoinAndReplay subscribes s to roomID and returns up to limit recent
// messages. If the history read fails, a subscription made by this call is
// undone so the failed join leaves no trace.
func (m *Manager) JoinAndReplay(ctx context.Context, s *Session, roomID int64, limit int) ([]Message, error) {
	already := s.subscribed(roomID)
	if err := m.JoinRoom(ctx, s, roomID); err != nil {
		return nil, err
	}
	msgs, err := m.history.History(ctx, s.Identity, roomID, limit, 0)
	if err != nil {
		if !already {
			m.LeaveRoom(s, roomID)
		}
		return nil, err
	}
	return msgs, nil
}

// Shutdown disconnects every live session.
func (m *Manager) Shutdown() {
	for _, s := range m.registry.Sessions() {
		m.Disconnect(s)
	}
}
