package chat

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"campus-hub/internal/apperr"
)

// Dispatcher executes inbound websocket frames on behalf of a session.
// Replies and errors go back to that session only.
type Dispatcher struct {
	manager     *Manager
	broadcaster *Broadcaster
	log         *zap.Logger
}

func NewDispatcher(manager *Manager, broadcaster *Broadcaster, log *zap.Logger) *Dispatcher {
	return &Dispatcher{manager: manager, broadcaster: broadcaster, log: log}
}

func (d *Dispatcher) Handle(ctx context.Context, s *Session, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		d.fail(s, "", apperr.Validation("frame", "body", "malformed JSON frame"))
		return
	}

	switch f.Type {
	case FrameJoinRoom:
		msgs, err := d.manager.JoinAndReplay(ctx, s, f.RoomID, f.Limit)
		if err != nil {
			d.fail(s, f.Ref, err)
			return
		}
		d.broadcaster.Unicast(s, Event{Type: EventJoined, Ref: f.Ref, RoomID: f.RoomID, Messages: msgs})

	case FrameLeaveRoom:
		d.manager.LeaveRoom(s, f.RoomID)
		d.broadcaster.Unicast(s, Event{Type: EventLeft, Ref: f.Ref, RoomID: f.RoomID})

	case FrameSendMessage:
		_, err := d.broadcaster.Send(ctx, s, SendRequest{RoomID: f.RoomID, Content: f.Content, Attachment: f.Attachment})
		if err != nil {
			d.fail(s, f.Ref, err)
		}

	case FrameDeleteMessage:
		if _, err := d.broadcaster.SoftDelete(ctx, s.Identity, f.MessageID); err != nil {
			d.fail(s, f.Ref, err)
		}

	case FrameResync:
		rooms := f.Rooms
		if len(rooms) == 0 {
			rooms = s.Rooms()
		}
		replays := d.manager.Resync(ctx, s, rooms, f.Limit)
		d.broadcaster.Unicast(s, Event{Type: EventResynced, Ref: f.Ref, Rooms: replays})

	default:
		d.fail(s, f.Ref, apperr.Validation("frame", "type", "unknown frame type"))
	}
}

// RateLimited tells s its frame was dropped.
func (d *Dispatcher) RateLimited(s *Session) {
	d.fail(s, "", apperr.RateLimited("frame"))
}

func (d *Dispatcher) fail(s *Session, ref string, err error) {
	if errors.Is(err, ErrSessionClosed) {
		return
	}
	if !apperr.IsDomain(err) || apperr.KindOf(err) == apperr.KindUnavailable {
		d.log.Error("frame_failed", zap.String("session_id", s.ID), zap.Error(err))
	}
	body := apperr.ToBody(err)
	d.broadcaster.Unicast(s, Event{Type: EventError, Ref: ref, Error: &body})
}
