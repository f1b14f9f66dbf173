package services

import (
	"context"
	"fmt"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FriendService runs the friend-request lifecycle: pending requests are
// accepted by the addressee, or deleted by either party.
type FriendService struct {
	friendships   repositories.FriendshipRepository
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
	hub           *realtime.Hub
	events        events.Publisher
	log           *zap.Logger
}

// NewFriendService creates a new FriendService
func NewFriendService(
	friendships repositories.FriendshipRepository,
	users repositories.UserRepository,
	notifications repositories.NotificationRepository,
	hub *realtime.Hub,
	publisher events.Publisher,
	log *zap.Logger,
) *FriendService {
	return &FriendService{
		friendships:   friendships,
		users:         users,
		notifications: notifications,
		hub:           hub,
		events:        publisher,
		log:           log.Named("friends"),
	}
}

// SendRequest creates a pending request from fromID to toID. It fails with
// ErrFriendRequestExists or ErrAlreadyFriends when the two users already have
// a request in either direction.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID string) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrSelfRequest
	}
	sender, err := s.users.GetUserByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, toID); err != nil {
		return nil, err
	}

	req := &models.FriendRequest{
		ID:     uuid.NewString(),
		FromID: fromID,
		ToID:   toID,
		Status: models.FriendRequestPending,
	}
	if err := s.friendships.SendFriendRequest(ctx, req); err != nil {
		return nil, err
	}

	s.notify(ctx, &models.Notification{
		Type:        models.NotificationFriendRequest,
		ActorID:     fromID,
		RecipientID: toID,
		TargetID:    req.ID,
		TargetType:  "friend_request",
		Message:     fmt.Sprintf("%s sent you a friend request", sender.Name),
	})
	s.changed(ctx, req, events.FriendRequestSent)
	return req, nil
}

// Accept moves a pending request to accepted. Only the addressee may accept.
func (s *FriendService) Accept(ctx context.Context, userID, requestID string) (*models.FriendRequest, error) {
	req, err := s.friendships.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToID != userID {
		return nil, ErrForbidden
	}
	if req.Status == models.FriendRequestAccepted {
		return nil, repositories.ErrAlreadyFriends
	}
	if err := s.friendships.AcceptFriendRequest(ctx, requestID); err != nil {
		return nil, err
	}
	req.Status = models.FriendRequestAccepted

	name := "Someone"
	if me, err := s.users.GetUserByID(ctx, userID); err == nil {
		name = me.Name
	}
	s.notify(ctx, &models.Notification{
		Type:        models.NotificationFriendAccepted,
		ActorID:     userID,
		RecipientID: req.FromID,
		TargetID:    req.ID,
		TargetType:  "friend_request",
		Message:     fmt.Sprintf("%s accepted your friend request", name),
	})
	s.changed(ctx, req, events.FriendRequestAccepted)
	return req, nil
}

// Decline deletes a pending request. The addressee rejects it, the sender
// cancels it.
func (s *FriendService) Decline(ctx context.Context, userID, requestID string) error {
	req, err := s.friendships.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.FromID != userID && req.ToID != userID {
		return ErrForbidden
	}
	if req.Status != models.FriendRequestPending {
		return repositories.ErrAlreadyFriends
	}
	if err := s.friendships.DeleteFriendRequest(ctx, requestID); err != nil {
		return err
	}
	s.changed(ctx, req, "")
	return nil
}

// Unfriend deletes the accepted request between userID and friendID.
func (s *FriendService) Unfriend(ctx context.Context, userID, friendID string) error {
	req, err := s.friendships.GetFriendRequestBetween(ctx, userID, friendID)
	if err != nil {
		return ErrNotFriends
	}
	if req.Status != models.FriendRequestAccepted {
		return ErrNotFriends
	}
	if err := s.friendships.DeleteFriendRequest(ctx, req.ID); err != nil {
		return err
	}
	s.changed(ctx, req, "")
	return nil
}

func (s *FriendService) Incoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.friendships.GetIncomingRequests(ctx, userID)
}

func (s *FriendService) Outgoing(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.friendships.GetOutgoingRequests(ctx, userID)
}

func (s *FriendService) Friends(ctx context.Context, userID string) ([]models.User, error) {
	return s.friendships.GetUserFriends(ctx, userID)
}

func (s *FriendService) notify(ctx context.Context, n *models.Notification) {
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		s.log.Warn("creating notification failed", zap.String("recipient", n.RecipientID), zap.Error(err))
	}
}

// changed wakes both parties' friend views and, when eventType is set,
// emits a domain event.
func (s *FriendService) changed(ctx context.Context, req *models.FriendRequest, eventType string) {
	s.hub.Publish(ctx, realtime.FriendsTopic(req.FromID))
	s.hub.Publish(ctx, realtime.FriendsTopic(req.ToID))
	if eventType == "" {
		return
	}
	if err := s.events.Publish(ctx, eventType, req.PairKey, req); err != nil {
		s.log.Warn("publishing event failed", zap.String("type", eventType), zap.Error(err))
	}
}
