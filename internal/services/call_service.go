package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// CallService mediates the signaling handshake of one-to-one calls. The call
// record is the mailbox for offer and answer; each side appends its ICE
// candidates to its own role's log and reads the other's.
type CallService struct {
	calls         repositories.CallRepository
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
	hub           *realtime.Hub
	events        events.Publisher
	metrics       *metrics.Metrics
	log           *zap.Logger

	now         func() time.Time
	ringTimeout time.Duration
	iceServers  []string
}

type CallOption func(*CallService)

// WithCallClock replaces time.Now.
func WithCallClock(now func() time.Time) CallOption {
	return func(s *CallService) { s.now = now }
}

// WithRingTimeout makes SweepStale end calls left ringing longer than d.
// Zero disables the sweep.
func WithRingTimeout(d time.Duration) CallOption {
	return func(s *CallService) { s.ringTimeout = d }
}

// WithICEServers sets the STUN/TURN urls handed to clients.
func WithICEServers(urls []string) CallOption {
	return func(s *CallService) { s.iceServers = urls }
}

// NewCallService creates a new CallService
func NewCallService(
	calls repositories.CallRepository,
	users repositories.UserRepository,
	notifications repositories.NotificationRepository,
	hub *realtime.Hub,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
	opts ...CallOption,
) *CallService {
	s := &CallService{
		calls:         calls,
		users:         users,
		notifications: notifications,
		hub:           hub,
		events:        publisher,
		metrics:       m,
		log:           log.Named("calls"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ICEServers returns the configuration clients should build their peer
// connections with.
func (s *CallService) ICEServers() []webrtc.ICEServer {
	if len(s.iceServers) == 0 {
		return []webrtc.ICEServer{}
	}
	return []webrtc.ICEServer{{URLs: s.iceServers}}
}

// Initiate creates a ringing call from callerID to receiverID.
func (s *CallService) Initiate(ctx context.Context, callerID, receiverID string) (*models.Call, error) {
	if callerID == receiverID {
		return nil, ErrSelfCall
	}
	caller, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.GetUserByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	call := &models.Call{
		ID:             uuid.NewString(),
		CallerID:       caller.ID,
		CallerName:     caller.Name,
		CallerAvatar:   caller.Avatar,
		ReceiverID:     receiver.ID,
		ReceiverName:   receiver.Name,
		ReceiverAvatar: receiver.Avatar,
		Status:         models.CallRinging,
		Timestamp:      now,
		UpdatedAt:      now,
	}
	if err := s.calls.CreateCall(ctx, call); err != nil {
		return nil, fmt.Errorf("creating call: %w", err)
	}
	s.metrics.CallsStarted.Inc()
	s.log.Info("call created", zap.String("call_id", call.ID), zap.String("caller", callerID), zap.String("receiver", receiverID))

	s.published(ctx, call, events.CallCreated)
	return call, nil
}

// participantCall loads the call and the role userID plays in it.
func (s *CallService) participantCall(ctx context.Context, userID, callID string) (*models.Call, models.CallRole, error) {
	call, err := s.calls.GetCallByID(ctx, callID)
	if err != nil {
		return nil, "", err
	}
	role, ok := call.RoleOf(userID)
	if !ok {
		return nil, "", ErrNotParticipant
	}
	return call, role, nil
}

// Get returns the call if userID takes part in it.
func (s *CallService) Get(ctx context.Context, userID, callID string) (*models.Call, error) {
	call, _, err := s.participantCall(ctx, userID, callID)
	return call, err
}

// SetOffer stores the caller's offer. Allowed while the call rings.
func (s *CallService) SetOffer(ctx context.Context, userID, callID string, offer webrtc.SessionDescription) (*models.Call, error) {
	_, role, err := s.participantCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleCaller {
		return nil, ErrForbidden
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return nil, fmt.Errorf("%w: expected an offer", ErrInvalidDescription)
	}
	call, err := s.calls.SetOffer(ctx, callID, models.NewSessionDescription(offer), s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.published(ctx, call, "")
	return call, nil
}

// Answer attaches the receiver's answer and moves the call to connected.
func (s *CallService) Answer(ctx context.Context, userID, callID string, answer webrtc.SessionDescription) (*models.Call, error) {
	call, role, err := s.participantCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleReceiver {
		return nil, ErrForbidden
	}
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP == "" {
		return nil, fmt.Errorf("%w: expected an answer", ErrInvalidDescription)
	}
	if call.Status == models.CallRinging && call.Offer == nil {
		return nil, ErrOfferPending
	}
	return s.transition(ctx, callID, models.CallConnected, models.NewSessionDescription(answer))
}

// Reject declines a ringing call. Only the receiver may reject.
func (s *CallService) Reject(ctx context.Context, userID, callID string) (*models.Call, error) {
	_, role, err := s.participantCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleReceiver {
		return nil, ErrForbidden
	}
	return s.transition(ctx, callID, models.CallRejected, nil)
}

// End hangs up a ringing or connected call. Either party may end it.
func (s *CallService) End(ctx context.Context, userID, callID string) (*models.Call, error) {
	if _, _, err := s.participantCall(ctx, userID, callID); err != nil {
		return nil, err
	}
	return s.transition(ctx, callID, models.CallEnded, nil)
}

func (s *CallService) transition(ctx context.Context, callID string, next models.CallStatus, answer *models.SessionDescription) (*models.Call, error) {
	call, err := s.calls.Transition(ctx, callID, next, answer, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.CallTransitions.WithLabelValues(string(next)).Inc()
	s.log.Info("call status changed", zap.String("call_id", callID), zap.String("status", string(next)))
	s.published(ctx, call, events.CallStatusChanged)
	return call, nil
}

// AddCandidate appends a candidate to the log of the role userID plays. The
// role is never taken from the client.
func (s *CallService) AddCandidate(ctx context.Context, userID, callID string, init webrtc.ICECandidateInit) (*models.IceCandidate, error) {
	call, role, err := s.participantCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	if call.Status.Terminal() {
		return nil, ErrCallClosed
	}
	if init.Candidate == "" {
		return nil, fmt.Errorf("%w: empty candidate", ErrInvalidDescription)
	}
	candidate := &models.IceCandidate{
		ID:               uuid.NewString(),
		CallID:           callID,
		Role:             role,
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.calls.AddCandidate(ctx, candidate); err != nil {
		return nil, fmt.Errorf("storing candidate: %w", err)
	}
	s.metrics.CandidatesAdded.WithLabelValues(string(role)).Inc()
	s.hub.Publish(ctx, realtime.CandidatesTopic(callID, role))
	return candidate, nil
}

// ListCandidates returns the candidates written by userID's peer.
func (s *CallService) ListCandidates(ctx context.Context, userID, callID string) ([]models.IceCandidate, error) {
	_, role, err := s.participantCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	return s.calls.ListCandidates(ctx, callID, role.Remote())
}

// WatchIncoming delivers the list of calls ringing for userID each time it
// changes.
func (s *CallService) WatchIncoming(ctx context.Context, userID string) <-chan []models.Call {
	return realtime.Watch(ctx, s.hub, realtime.IncomingCallsTopic(userID),
		func(ctx context.Context) ([]models.Call, error) {
			return s.calls.ListRinging(ctx, userID)
		})
}

// WatchCall delivers the call record each time it changes.
func (s *CallService) WatchCall(ctx context.Context, userID, callID string) (<-chan models.Call, error) {
	if _, _, err := s.participantCall(ctx, userID, callID); err != nil {
		return nil, err
	}
	return realtime.Watch(ctx, s.hub, realtime.CallTopic(callID),
		func(ctx context.Context) (models.Call, error) {
			call, err := s.calls.GetCallByID(ctx, callID)
			if err != nil {
				return models.Call{}, err
			}
			return *call, nil
		}), nil
}

// WatchCandidates delivers each candidate of the remote role's log once, in
// write order.
func (s *CallService) WatchCandidates(ctx context.Context, userID, callID string) (<-chan models.IceCandidate, error) {
	_, role, err := s.participantCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	remote := role.Remote()
	snapshots := realtime.Watch(ctx, s.hub, realtime.CandidatesTopic(callID, remote),
		func(ctx context.Context) ([]models.IceCandidate, error) {
			return s.calls.ListCandidates(ctx, callID, remote)
		})

	out := make(chan models.IceCandidate)
	go func() {
		defer close(out)
		seen := make(map[string]struct{})
		for snapshot := range snapshots {
			for _, c := range snapshot {
				if _, ok := seen[c.ID]; ok {
					continue
				}
				seen[c.ID] = struct{}{}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// SweepStale ends calls that have been ringing longer than the ring timeout
// and leaves the receiver a missed-call notification. It returns how many
// calls it ended.
func (s *CallService) SweepStale(ctx context.Context) (int, error) {
	if s.ringTimeout <= 0 {
		return 0, nil
	}
	stale, err := s.calls.ListStaleRinging(ctx, s.now().UTC().Add(-s.ringTimeout))
	if err != nil {
		return 0, err
	}
	ended := 0
	for _, c := range stale {
		if _, err := s.transition(ctx, c.ID, models.CallEnded, nil); err != nil {
			if errors.Is(err, repositories.ErrInvalidTransition) {
				continue // answered or hung up meanwhile
			}
			return ended, err
		}
		ended++
		n := &models.Notification{
			Type:        models.NotificationMissedCall,
			ActorID:     c.CallerID,
			RecipientID: c.ReceiverID,
			TargetID:    c.ID,
			TargetType:  "call",
			Message:     fmt.Sprintf("Missed call from %s", c.CallerName),
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			s.log.Warn("creating missed-call notification failed", zap.String("call_id", c.ID), zap.Error(err))
		}
	}
	return ended, nil
}

// published wakes the watchers of the call and of the receiver's incoming
// list, and emits eventType when set.
func (s *CallService) published(ctx context.Context, call *models.Call, eventType string) {
	s.hub.Publish(ctx, realtime.CallTopic(call.ID))
	s.hub.Publish(ctx, realtime.IncomingCallsTopic(call.ReceiverID))
	if eventType == "" {
		return
	}
	if err := s.events.Publish(ctx, eventType, call.ID, call); err != nil {
		s.log.Warn("publishing event failed", zap.String("type", eventType), zap.Error(err))
	}
}
