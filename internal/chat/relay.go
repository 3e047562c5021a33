package chat

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay carries room events between server instances so a session connected
// to any instance sees every message of its rooms.
type Relay interface {
	Publish(ctx context.Context, roomID int64, payload []byte) error
	// Run delivers events published by other instances until ctx ends.
	Run(ctx context.Context, deliver func(roomID int64, payload []byte)) error
}

// NopRelay is used when the server runs as a single instance.
type NopRelay struct{}

func (NopRelay) Publish(context.Context, int64, []byte) error { return nil }

func (NopRelay) Run(ctx context.Context, _ func(int64, []byte)) error {
	<-ctx.Done()
	return nil
}

type envelope struct {
	Origin  string          `json:"origin"`
	RoomID  int64           `json:"room_id"`
	Payload json.RawMessage `json:"payload"`
}

type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, log *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, origin: uuid.NewString(), log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, roomID int64, payload []byte) error {
	data, err := json.Marshal(envelope{Origin: r.origin, RoomID: roomID, Payload: payload})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run listens for messages from other instances. Our own publishes were
// already delivered locally and are skipped.
func (r *RedisRelay) Run(ctx context.Context, deliver func(roomID int64, payload []byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("relay_subscribed", zap.String("channel", r.channel), zap.String("origin", r.origin))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("relay_bad_envelope", zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			deliver(env.RoomID, env.Payload)
		}
	}
}
