package realtime

import (
	"context"
	"sync"

	"github.com/bigyann/lumina/backend/internal/models"
	"go.uber.org/zap"
)

// Topic names. Publishing on a topic tells every subscriber that the data
// behind it changed; subscribers re-read their own snapshot.
func IncomingCallsTopic(userID string) string { return "calls.incoming:" + userID }
func CallTopic(callID string) string          { return "call:" + callID }
func ChatTopic(chatID string) string          { return "chat:" + chatID }
func InboxTopic(userID string) string         { return "inbox:" + userID }
func FriendsTopic(userID string) string       { return "friends:" + userID }

// CandidatesTopic is the topic of one role's candidate log of a call.
func CandidatesTopic(callID string, role models.CallRole) string {
	return "call:" + callID + ":candidates:" + string(role)
}

// Relay forwards published topics to other server instances.
type Relay interface {
	Publish(ctx context.Context, topic string) error
}

// Hub fans change triggers out to in-process subscriptions.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]map[*Subscription]struct{}
	relay Relay
	log   *zap.Logger
}

// NewHub creates a new Hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log.Named("realtime"),
	}
}

// SetRelay installs a cross-instance relay. It must be called before the hub
// is shared.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Subscription receives a trigger each time its topic is published. Triggers
// coalesce: while one is pending, further publishes are absorbed by it.
type Subscription struct {
	topic string
	ch    chan struct{}
	hub   *Hub
	once  sync.Once
}

// C returns the trigger channel. It is closed by Close.
func (s *Subscription) C() <-chan struct{} { return s.ch }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Close detaches the subscription from the hub. It is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if set, ok := s.hub.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.topic)
			}
		}
		close(s.ch)
	})
}

// Subscribe registers interest in topic.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan struct{}, 1), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[topic] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish triggers local subscribers of topic and forwards the topic to the
// relay, if one is installed.
func (h *Hub) Publish(ctx context.Context, topic string) {
	h.Deliver(topic)
	if h.relay == nil {
		return
	}
	if err := h.relay.Publish(ctx, topic); err != nil {
		h.log.Warn("relay publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Deliver triggers local subscribers only. It never blocks.
func (h *Hub) Deliver(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[topic] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Watch turns a query into a live query: it subscribes to topic, then runs
// query once and again after every trigger, sending each snapshot on the
// returned channel. Subscribing before the first read means no change can
// slip between the read and the subscription. The channel is closed when ctx
// is done. Query errors are logged and the previous snapshot stands.
func Watch[T any](ctx context.Context, h *Hub, topic string, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T)
	sub := h.Subscribe(topic)

	go func() {
		defer close(out)
		defer sub.Close()

		emit := func() bool {
			snapshot, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					h.log.Warn("live query failed", zap.String("topic", topic), zap.Error(err))
				}
				return ctx.Err() == nil
			}
			select {
			case out <- snapshot:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok || !emit() {
					return
				}
			}
		}
	}()

	return out
}
