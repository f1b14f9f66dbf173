package callagent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// State is the agent's position in the call lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateIncoming   State = "incoming"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateEnded      State = "ended"
	StateRejected   State = "rejected"
)

var (
	ErrBusy           = errors.New("already in a call")
	ErrNoIncomingCall = errors.New("no incoming call")
	ErrNoActiveCall   = errors.New("no active call")
	ErrOfferPending   = errors.New("incoming call has no offer yet")

	errIncomingClosed = errors.New("incoming call subscription closed")
)

// Option configures an Agent.
type Option func(*Agent)

// WithICEServers replaces DefaultICEServers. An empty list means host
// candidates only.
func WithICEServers(servers []webrtc.ICEServer) Option {
	return func(a *Agent) { a.iceServers = servers }
}

// WithVideo controls whether calls ask for a camera. Defaults to true.
func WithVideo(enabled bool) Option {
	return func(a *Agent) { a.video = enabled }
}

// WithLogger sets the agent's logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Agent) { a.log = log.Named("callagent") }
}

// WithStateHook registers fn for every state change, and for updates of a
// pending incoming call. fn runs without the agent's lock held but on the
// goroutine that caused the change, so it must not block.
func WithStateHook(fn func(State, models.Call)) Option {
	return func(a *Agent) { a.onState = fn }
}

// Agent drives one user's side of calls. It handles at most one call at a
// time.
type Agent struct {
	userID     string
	sig        Signaling
	newPeer    PeerFactory
	devices    MediaDevices
	iceServers []webrtc.ICEServer
	video      bool
	onState    func(State, models.Call)
	log        *zap.Logger

	mu       sync.Mutex
	state    State
	call     *models.Call
	role     models.CallRole
	session  *session
	iceState webrtc.ICEConnectionState
	ignored  map[string]struct{}
	changes  []stateChange
}

type stateChange struct {
	state State
	call  models.Call
}

// session is the media side of one call. Its mutable fields are guarded by
// the agent's mutex.
type session struct {
	callID string
	pc     PeerConnection
	stream MediaStream
	cancel context.CancelFunc

	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// New creates a new Agent for userID.
func New(userID string, sig Signaling, newPeer PeerFactory, devices MediaDevices, opts ...Option) *Agent {
	a := &Agent{
		userID:     userID,
		sig:        sig,
		newPeer:    newPeer,
		devices:    devices,
		iceServers: DefaultICEServers,
		video:      true,
		log:        zap.NewNop(),
		state:      StateIdle,
		ignored:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Call returns the incoming or active call, if any.
func (a *Agent) Call() (models.Call, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.call == nil {
		return models.Call{}, false
	}
	return *a.call, true
}

// ICEState returns the ICE state of the active peer connection.
func (a *Agent) ICEState() webrtc.ICEConnectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iceState
}

func (a *Agent) setLocked(s State) {
	a.state = s
	var snapshot models.Call
	if a.call != nil {
		snapshot = *a.call
	}
	a.changes = append(a.changes, stateChange{state: s, call: snapshot})
}

// unlock releases the mutex and then reports queued state changes.
func (a *Agent) unlock() {
	changes := a.changes
	a.changes = nil
	a.mu.Unlock()
	if a.onState == nil {
		return
	}
	for _, c := range changes {
		a.onState(c.state, c.call)
	}
}

func (a *Agent) constraints() Constraints {
	return Constraints{Audio: true, Video: a.video}
}

// Run watches for calls ringing for the user until ctx ends. Only one call
// is offered at a time; calls the agent rejected or failed to accept are not
// offered again.
func (a *Agent) Run(ctx context.Context) error {
	incoming, err := a.sig.WatchIncoming(ctx)
	if err != nil {
		return fmt.Errorf("watching incoming calls: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case calls, ok := <-incoming:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errIncomingClosed
			}
			a.onIncoming(calls)
		}
	}
}

func (a *Agent) onIncoming(calls []models.Call) {
	a.mu.Lock()
	defer a.unlock()

	if a.state == StateIncoming {
		for _, c := range calls {
			if c.ID != a.call.ID {
				continue
			}
			hadOffer := a.call.Offer != nil
			c := c
			a.call = &c
			if !hadOffer && c.Offer != nil {
				a.setLocked(StateIncoming)
			}
			return
		}
		// The caller gave up before we answered.
		a.setLocked(StateEnded)
		a.call = nil
		a.setLocked(StateIdle)
		return
	}
	if a.state != StateIdle {
		return
	}
	for _, c := range calls {
		if _, skip := a.ignored[c.ID]; skip || c.CallerID == a.userID {
			continue
		}
		c := c
		a.call = &c
		a.role = models.RoleReceiver
		a.setLocked(StateIncoming)
		return
	}
}

// Call places a call to receiverID and sends the offer. The call is
// connected once the receiver's answer arrives.
func (a *Agent) Call(ctx context.Context, receiverID string) (*models.Call, error) {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return nil, ErrBusy
	}
	a.call = nil
	a.role = models.RoleCaller
	a.setLocked(StateConnecting)
	a.unlock()

	stream, err := acquireMedia(ctx, a.devices, a.constraints())
	if err != nil {
		a.teardown(nil, StateIdle)
		return nil, err
	}
	call, err := a.sig.CreateCall(ctx, receiverID)
	if err != nil {
		stream.Stop()
		a.teardown(nil, StateIdle)
		return nil, fmt.Errorf("creating call: %w", err)
	}

	s, err := a.openSession(ctx, call, stream)
	if err == nil {
		err = a.sendOffer(ctx, s)
	}
	if err != nil {
		if s == nil {
			stream.Stop()
		}
		if endErr := a.sig.End(context.WithoutCancel(ctx), call.ID); endErr != nil {
			a.log.Warn("ending abandoned call failed", zap.String("call_id", call.ID), zap.Error(endErr))
		}
		a.teardown(s, StateEnded)
		return nil, err
	}
	a.log.Info("call placed", zap.String("call_id", call.ID), zap.String("receiver", receiverID))
	return call, nil
}

func (a *Agent) sendOffer(ctx context.Context, s *session) error {
	offer, err := s.pc.CreateOffer()
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local offer: %w", err)
	}
	if err := a.sig.SetOffer(ctx, s.callID, offer); err != nil {
		return fmt.Errorf("sending offer: %w", err)
	}
	return nil
}

// Accept answers the incoming call. If anything fails the call is rejected
// and not offered again.
func (a *Agent) Accept(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateIncoming || a.call == nil {
		a.mu.Unlock()
		return ErrNoIncomingCall
	}
	call := *a.call
	if call.Offer == nil {
		a.mu.Unlock()
		return ErrOfferPending
	}
	a.setLocked(StateConnecting)
	a.unlock()

	s, err := a.answer(ctx, call)
	if err != nil {
		a.mu.Lock()
		a.ignored[call.ID] = struct{}{}
		a.mu.Unlock()
		if rejectErr := a.sig.Reject(context.WithoutCancel(ctx), call.ID); rejectErr != nil {
			a.log.Warn("rejecting failed call", zap.String("call_id", call.ID), zap.Error(rejectErr))
		}
		a.teardown(s, StateRejected)
		return fmt.Errorf("accepting call: %w", err)
	}
	a.log.Info("call answered", zap.String("call_id", call.ID))
	return nil
}

// answer returns the session it opened, if any, even on failure.
func (a *Agent) answer(ctx context.Context, call models.Call) (*session, error) {
	stream, err := acquireMedia(ctx, a.devices, a.constraints())
	if err != nil {
		return nil, err
	}
	s, err := a.openSession(ctx, &call, stream)
	if err != nil {
		stream.Stop()
		return nil, err
	}
	if err := s.pc.SetRemoteDescription(call.Offer.WebRTC()); err != nil {
		return s, fmt.Errorf("applying offer: %w", err)
	}
	a.remoteReady(s)

	answer, err := s.pc.CreateAnswer()
	if err != nil {
		return s, fmt.Errorf("creating answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return s, fmt.Errorf("setting local answer: %w", err)
	}
	if err := a.sig.Answer(ctx, call.ID, answer); err != nil {
		return s, fmt.Errorf("sending answer: %w", err)
	}

	a.mu.Lock()
	if a.session == s {
		a.setLocked(StateConnected)
	}
	a.unlock()
	return s, nil
}

// Reject declines the incoming call.
func (a *Agent) Reject(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateIncoming || a.call == nil {
		a.mu.Unlock()
		return ErrNoIncomingCall
	}
	callID := a.call.ID
	a.ignored[callID] = struct{}{}
	a.setLocked(StateRejected)
	a.call = nil
	a.setLocked(StateIdle)
	a.unlock()

	if err := a.sig.Reject(ctx, callID); err != nil {
		return fmt.Errorf("rejecting call: %w", err)
	}
	return nil
}

// Hangup ends the active call.
func (a *Agent) Hangup(ctx context.Context) error {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return ErrNoActiveCall
	}
	err := a.sig.End(ctx, s.callID)
	a.teardown(s, StateEnded)
	if err != nil {
		return fmt.Errorf("ending call: %w", err)
	}
	return nil
}

// Close hangs up any active call.
func (a *Agent) Close(ctx context.Context) error {
	if err := a.Hangup(ctx); err != nil && !errors.Is(err, ErrNoActiveCall) {
		return err
	}
	return nil
}

// openSession creates the peer connection for call, attaches the local
// tracks and starts following the call record and the remote candidates.
func (a *Agent) openSession(ctx context.Context, call *models.Call, stream MediaStream) (*session, error) {
	pc, err := a.newPeer(webrtc.Configuration{ICEServers: a.iceServers})
	if err != nil {
		return nil, fmt.Errorf("opening peer connection: %w", err)
	}
	for _, t := range stream.Tracks() {
		if err := pc.AddTrack(t); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("adding %s track: %w", t.Kind(), err)
		}
	}

	// The session outlives the request that opened it.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{callID: call.ID, pc: pc, stream: stream, cancel: cancel}
	log := a.log.With(zap.String("call_id", call.ID))

	pc.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		if c == nil {
			return
		}
		if err := a.sig.AddCandidate(sctx, call.ID, *c); err != nil && sctx.Err() == nil {
			log.Warn("sending candidate failed", zap.Error(err))
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Debug("ice state changed", zap.String("state", state.String()))
		a.mu.Lock()
		if a.session == s {
			a.iceState = state
		}
		a.mu.Unlock()
	})

	updates, err := a.sig.WatchCall(sctx, call.ID)
	if err != nil {
		cancel()
		_ = pc.Close()
		return nil, fmt.Errorf("watching call: %w", err)
	}
	candidates, err := a.sig.WatchCandidates(sctx, call.ID)
	if err != nil {
		cancel()
		_ = pc.Close()
		return nil, fmt.Errorf("watching candidates: %w", err)
	}

	a.mu.Lock()
	c := *call
	a.call = &c
	a.session = s
	a.iceState = webrtc.ICEConnectionStateNew
	a.mu.Unlock()

	go a.followCall(s, updates)
	go a.feedCandidates(s, candidates)
	return s, nil
}

// followCall reacts to changes of the call record until the session ends.
func (a *Agent) followCall(s *session, updates <-chan models.Call) {
	for call := range updates {
		switch call.Status {
		case models.CallEnded:
			a.teardown(s, StateEnded)
			return
		case models.CallRejected:
			a.teardown(s, StateRejected)
			return
		case models.CallConnected:
			if err := a.applyAnswer(s, call); err != nil {
				a.log.Warn("applying answer failed", zap.String("call_id", s.callID), zap.Error(err))
			}
		default:
			a.mu.Lock()
			if a.session == s {
				c := call
				a.call = &c
			}
			a.mu.Unlock()
		}
	}
}

// applyAnswer sets the receiver's answer on the caller's connection once.
func (a *Agent) applyAnswer(s *session, call models.Call) error {
	a.mu.Lock()
	if a.session != s {
		a.mu.Unlock()
		return nil
	}
	c := call
	a.call = &c
	if a.role != models.RoleCaller || s.remoteSet || call.Answer == nil {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	if err := s.pc.SetRemoteDescription(call.Answer.WebRTC()); err != nil {
		return err
	}
	a.remoteReady(s)

	a.mu.Lock()
	if a.session == s {
		a.setLocked(StateConnected)
	}
	a.unlock()
	return nil
}

// remoteReady marks the remote description as set and flushes the
// candidates that arrived before it.
func (a *Agent) remoteReady(s *session) {
	a.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	a.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			a.log.Warn("adding queued candidate failed", zap.String("call_id", s.callID), zap.Error(err))
		}
	}
}

func (a *Agent) feedCandidates(s *session, candidates <-chan webrtc.ICECandidateInit) {
	for c := range candidates {
		a.mu.Lock()
		if !s.remoteSet {
			s.pending = append(s.pending, c)
			a.mu.Unlock()
			continue
		}
		a.mu.Unlock()
		if err := s.pc.AddICECandidate(c); err != nil {
			a.log.Warn("adding candidate failed", zap.String("call_id", s.callID), zap.Error(err))
		}
	}
}

// teardown closes s and returns the agent to idle through final. It does
// nothing if s is no longer the agent's session.
func (a *Agent) teardown(s *session, final State) {
	a.mu.Lock()
	if a.session != s {
		a.mu.Unlock()
		return
	}
	a.session = nil
	if s != nil {
		a.iceState = webrtc.ICEConnectionStateClosed
	}
	if final != StateIdle {
		a.setLocked(final)
	}
	a.call = nil
	a.setLocked(StateIdle)
	a.unlock()

	if s == nil {
		return
	}
	s.cancel()
	s.stream.Stop()
	if err := s.pc.Close(); err != nil {
		a.log.Debug("closing peer connection", zap.String("call_id", s.callID), zap.Error(err))
	}
	a.log.Info("call closed", zap.String("call_id", s.callID), zap.String("outcome", string(final)))
}
