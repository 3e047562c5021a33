package chat

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
	"campus-hub/internal/lockmap"
	"campus-hub/internal/retry"
)

// MaxHistoryLimit caps a single history page.
const MaxHistoryLimit = 200

// Membership answers whether a user belongs to a room. Unknown rooms are
// reported as apperr.KindNotFound.
type Membership interface {
	CheckMember(ctx context.Context, roomID, userID int64) (bool, error)
}

type BroadcasterConfig struct {
	MaxContentLength int
	HistoryLimit     int
}

// Broadcaster persists room messages and fans them out to every subscribed
// session. Persist and enqueue happen under a per-room lock so all sessions
// of a room observe the same order.
type Broadcaster struct {
	registry *Registry
	store    MessageStore
	members  Membership
	relay    Relay
	locks    *lockmap.Map[int64]
	retry    retry.Policy
	metrics  *Metrics
	log      *zap.Logger
	cfg      BroadcasterConfig
}

func NewBroadcaster(registry *Registry, store MessageStore, members Membership, relay Relay,
	policy retry.Policy, metrics *Metrics, log *zap.Logger, cfg BroadcasterConfig) *Broadcaster {
	if relay == nil {
		relay = NopRelay{}
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry(), registry)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Broadcaster{
		registry: registry,
		store:    store,
		members:  members,
		relay:    relay,
		locks:    lockmap.New[int64](),
		retry:    policy,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
	}
}

func validateSend(op string, req SendRequest, maxLen int) (string, AttachmentKind, error) {
	kind, url := AttachmentNone, ""
	if a := req.Attachment; a != nil && (a.URL != "" || (a.Kind != "" && a.Kind != AttachmentNone)) {
		switch a.Kind {
		case AttachmentImage, AttachmentFile:
		default:
			return "", "", apperr.Validation(op, "attachment.kind", "must be image or file")
		}
		if strings.TrimSpace(a.URL) == "" {
			return "", "", apperr.Validation(op, "attachment.url", "is required")
		}
		kind, url = a.Kind, strings.TrimSpace(a.URL)
	}
	if strings.TrimSpace(req.Content) == "" && kind == AttachmentNone {
		return "", "", apperr.Validation(op, "content", "message needs content or an attachment")
	}
	if maxLen > 0 && utf8.RuneCountInString(req.Content) > maxLen {
		return "", "", apperr.Validation(op, "content", "message is too long")
	}
	return url, kind, nil
}

// Send persists a message from s into req.RoomID and delivers it to every
// session subscribed to that room, including s when subscribed.
func (b *Broadcaster) Send(ctx context.Context, s *Session, req SendRequest) (*Message, error) {
	const op = "message.send"
	url, kind, err := validateSend(op, req, b.cfg.MaxContentLength)
	if err != nil {
		return nil, err
	}

	ok, err := b.members.CheckMember(ctx, req.RoomID, s.Identity.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotMember(op, req.RoomID)
	}

	unlock := b.locks.Lock(req.RoomID)
	defer unlock()

	m := &Message{
		RoomID:         req.RoomID,
		SenderID:       s.Identity.UserID,
		SenderName:     s.Identity.Username,
		Content:        req.Content,
		AttachmentURL:  url,
		AttachmentKind: kind,
	}
	if err := b.retry.Do(ctx, op, func(ctx context.Context) error {
		return b.store.Create(ctx, m)
	}); err != nil {
		return nil, err
	}
	b.metrics.MessagesSent.Inc()

	b.fanOut(ctx, req.RoomID, Event{Type: EventNewMessage, RoomID: req.RoomID, Message: m})
	return m, nil
}

// SoftDelete hides a message from history and tells the room. Deleting an
// already deleted message succeeds without a second broadcast.
func (b *Broadcaster) SoftDelete(ctx context.Context, actor identity.Identity, messageID int64) (*Message, error) {
	const op = "message.delete"
	if !actor.IsAdmin {
		return nil, apperr.Forbidden(op, "admin access required")
	}

	m, err := retry.Value(ctx, b.retry, op, func(ctx context.Context) (*Message, error) {
		return b.store.FindByID(ctx, messageID)
	})
	if err != nil {
		return nil, err
	}

	unlock := b.locks.Lock(m.RoomID)
	defer unlock()

	var changed bool
	err = b.retry.Do(ctx, op, func(ctx context.Context) error {
		var err error
		m, changed, err = b.store.SoftDelete(ctx, messageID, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return m, nil
	}

	b.log.Info("message_deleted",
		zap.Int64("message_id", m.ID),
		zap.Int64("room_id", m.RoomID),
		zap.Int64("deleted_by", actor.UserID),
	)
	b.fanOut(ctx, m.RoomID, Event{Type: EventMessageDeleted, RoomID: m.RoomID, MessageID: m.ID})
	return m, nil
}

// History returns the newest visible messages of a room, oldest first.
// Admins may read any room.
func (b *Broadcaster) History(ctx context.Context, actor identity.Identity, roomID int64, limit int, beforeID int64) ([]Message, error) {
	const op = "message.history"
	if err := b.authorizeRead(ctx, op, actor, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = b.cfg.HistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return retry.Value(ctx, b.retry, op, func(ctx context.Context) ([]Message, error) {
		return b.store.ListByRoom(ctx, roomID, limit, beforeID)
	})
}

// Lookup returns a message by id, deleted or not.
func (b *Broadcaster) Lookup(ctx context.Context, actor identity.Identity, messageID int64) (*Message, error) {
	const op = "message.get"
	m, err := retry.Value(ctx, b.retry, op, func(ctx context.Context) (*Message, error) {
		return b.store.FindByID(ctx, messageID)
	})
	if err != nil {
		return nil, err
	}
	if err := b.authorizeRead(ctx, op, actor, m.RoomID); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Broadcaster) authorizeRead(ctx context.Context, op string, actor identity.Identity, roomID int64) error {
	ok, err := b.members.CheckMember(ctx, roomID, actor.UserID)
	if err != nil {
		return err
	}
	if !ok && !actor.IsAdmin {
		return apperr.NotMember(op, roomID)
	}
	return nil
}

// DeliverRemote hands an event relayed from another instance to the local
// subscribers of roomID.
func (b *Broadcaster) DeliverRemote(roomID int64, payload []byte) {
	unlock := b.locks.Lock(roomID)
	defer unlock()
	b.deliverLocal(roomID, payload)
}

// Unicast sends ev to a single session.
func (b *Broadcaster) Unicast(s *Session, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("event_encode_failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	b.deliver(s, payload)
}

func (b *Broadcaster) fanOut(ctx context.Context, roomID int64, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("event_encode_failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	b.deliverLocal(roomID, payload)

	if err := b.relay.Publish(ctx, roomID, payload); err != nil {
		b.metrics.RelayFailures.Inc()
		b.log.Warn("relay_publish_failed", zap.Int64("room_id", roomID), zap.Error(err))
	}
}

func (b *Broadcaster) deliverLocal(roomID int64, payload []byte) {
	for _, s := range b.registry.Subscribers(roomID) {
		b.deliver(s, payload)
	}
}

// deliver never blocks. A session that cannot keep up is disconnected.
func (b *Broadcaster) deliver(s *Session, payload []byte) {
	if s.Deliver(payload) {
		b.metrics.Deliveries.Inc()
		return
	}
	b.metrics.DeliveriesDropped.Inc()
	if b.registry.Drop(s) {
		b.log.Warn("session_evicted",
			zap.String("session_id", s.ID),
			zap.Int64("user_id", s.Identity.UserID),
		)
	}
}
