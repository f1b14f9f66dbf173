package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	inboxWindow     = 5
)

// MessageService appends direct messages and serves conversations, keyed by
// the sorted-pair chat id.
type MessageService struct {
	messages repositories.MessageRepository
	users    repositories.UserRepository
	hub      *realtime.Hub
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger

	pageSize int
	warmup   time.Duration
	now      func() time.Time
}

type MessageOption func(*MessageService)

// WithPageSize sets how many recent messages a conversation returns.
func WithPageSize(n int) MessageOption {
	return func(s *MessageService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithWarmup sets the inbox notification warm-up window.
func WithWarmup(d time.Duration) MessageOption {
	return func(s *MessageService) { s.warmup = d }
}

// WithMessageClock replaces time.Now.
func WithMessageClock(now func() time.Time) MessageOption {
	return func(s *MessageService) { s.now = now }
}

// NewMessageService creates a new MessageService
func NewMessageService(
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	hub *realtime.Hub,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
	opts ...MessageOption,
) *MessageService {
	s := &MessageService{
		messages: messages,
		users:    users,
		hub:      hub,
		events:   publisher,
		metrics:  m,
		log:      log.Named("messages"),
		pageSize: defaultPageSize,
		warmup:   2 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateMessage(senderID string, req *models.SendMessageRequest) error {
	if req.Type == "" {
		req.Type = models.MessageText
	}
	if req.ReceiverID == senderID {
		return fmt.Errorf("%w: cannot message yourself", ErrInvalidMessage)
	}
	switch req.Type {
	case models.MessageText:
		if strings.TrimSpace(req.Content) == "" {
			return fmt.Errorf("%w: content is required", ErrInvalidMessage)
		}
	case models.MessageImage, models.MessageAudio:
		if req.MediaURL == "" {
			return fmt.Errorf("%w: media_url is required for %s messages", ErrInvalidMessage, req.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, req.Type)
	}
	return nil
}

// Send appends a message from senderID and wakes both parties.
func (s *MessageService) Send(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.DirectMessage, error) {
	if err := validateMessage(senderID, &req); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	msg := &models.DirectMessage{
		ID:           uuid.NewString(),
		ChatID:       models.ChatID(senderID, req.ReceiverID),
		Participants: []string{senderID, req.ReceiverID},
		SenderID:     senderID,
		ReceiverID:   req.ReceiverID,
		Content:      req.Content,
		Type:         req.Type,
		MediaURL:     req.MediaURL,
		MimeType:     req.MimeType,
		Timestamp:    s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}
	s.metrics.MessagesSent.Inc()

	s.hub.Publish(ctx, realtime.ChatTopic(msg.ChatID))
	s.hub.Publish(ctx, realtime.InboxTopic(msg.ReceiverID))
	s.hub.Publish(ctx, realtime.InboxTopic(msg.SenderID))
	if err := s.events.Publish(ctx, events.MessageSent, msg.ChatID, msg); err != nil {
		s.log.Warn("publishing event failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
	}
	return msg, nil
}

// Conversation returns the latest page of the chat between userID and
// peerID in ascending timestamp order.
func (s *MessageService) Conversation(ctx context.Context, userID, peerID string) ([]models.DirectMessage, error) {
	return s.messages.GetConversation(ctx, models.ChatID(userID, peerID), userID, s.pageSize)
}

// MarkRead flips read on every message peerID sent to userID.
func (s *MessageService) MarkRead(ctx context.Context, userID, peerID string) (int64, error) {
	chatID := models.ChatID(userID, peerID)
	n, err := s.messages.MarkRead(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.hub.Publish(ctx, realtime.ChatTopic(chatID))
	}
	return n, nil
}

// WatchConversation is the live form of Conversation.
func (s *MessageService) WatchConversation(ctx context.Context, userID, peerID string) <-chan []models.DirectMessage {
	return realtime.Watch(ctx, s.hub, realtime.ChatTopic(models.ChatID(userID, peerID)),
		func(ctx context.Context) ([]models.DirectMessage, error) {
			return s.Conversation(ctx, userID, peerID)
		})
}

// WatchInbox emits each message that arrives for userID from someone else.
// Messages already present when the watch starts, and messages sent during
// the warm-up window, are not emitted.
func (s *MessageService) WatchInbox(ctx context.Context, userID string) <-chan models.DirectMessage {
	gate := realtime.NewWarmupGate(s.warmup, s.now)
	recent := func(ctx context.Context) ([]models.DirectMessage, error) {
		return s.messages.GetRecentForParticipant(ctx, userID, inboxWindow)
	}
	initial, err := recent(ctx)
	if err != nil {
		s.log.Warn("loading inbox failed", zap.String("user_id", userID), zap.Error(err))
	}
	for _, m := range initial {
		gate.Seed(m.ID)
	}

	out := make(chan models.DirectMessage)
	snapshots := realtime.Watch(ctx, s.hub, realtime.InboxTopic(userID), recent)
	go func() {
		defer close(out)
		for snapshot := range snapshots {
			// newest first; announce in arrival order
			for i := len(snapshot) - 1; i >= 0; i-- {
				m := snapshot[i]
				if m.SenderID == userID || !gate.Admit(m.ID, m.Timestamp) {
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
