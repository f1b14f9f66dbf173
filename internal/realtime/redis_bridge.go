package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultBridgeChannel = "lumina:realtime"

type envelope struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
}

// RedisBridge relays hub topics between server instances over a Redis
// pub/sub channel. Each instance tags what it publishes with its own origin
// id and ignores its own messages, which it already delivered locally.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	log     *zap.Logger
}

// NewRedisBridge creates a bridge and installs it as hub's relay.
func NewRedisBridge(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBridge {
	b := &RedisBridge{
		client:  client,
		hub:     hub,
		channel: defaultBridgeChannel,
		origin:  uuid.NewString(),
		log:     log.Named("redis-bridge"),
	}
	hub.SetRelay(b)
	return b
}

// Publish implements Relay.
func (b *RedisBridge) Publish(ctx context.Context, topic string) error {
	payload, err := json.Marshal(envelope{Origin: b.origin, Topic: topic})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run consumes the channel until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.log.Info("subscribed", zap.String("channel", b.channel), zap.String("origin", b.origin))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("dropping malformed envelope", zap.Error(err))
		return
	}
	if env.Origin == b.origin || env.Topic == "" {
		return
	}
	b.hub.Deliver(env.Topic)
}
