package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types emitted by the services.
const (
	CallCreated           = "call.created"
	CallStatusChanged     = "call.status_changed"
	MessageSent           = "message.sent"
	FriendRequestSent     = "friend.request_sent"
	FriendRequestAccepted = "friend.request_accepted"
	ListingStatusChanged  = "listing.status_changed"
	PollVoted             = "poll.voted"
)

// Event is the envelope written to the event stream.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits domain events. Publishing is best effort: callers log the
// error and carry on, the database write has already happened.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, data any) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic, keyed so that events
// about one entity stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher creates a new KafkaPublisher
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaPublisher{writer: w, log: log.Named("events")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	now := time.Now()
	b, err := json.Marshal(Event{Type: eventType, Key: key, Data: data, OccurredAt: now})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(eventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                     { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, eventType, key string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Type: eventType, Key: key, Data: data, OccurredAt: time.Now()})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
