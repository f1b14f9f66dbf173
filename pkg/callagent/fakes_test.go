package callagent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/pion/webrtc/v3"
)

// serviceSignaling binds the call service to one user, the way the
// WebSocket endpoint does.
type serviceSignaling struct {
	svc    *services.CallService
	userID string
}

func (s serviceSignaling) CreateCall(ctx context.Context, receiverID string) (*models.Call, error) {
	return s.svc.Initiate(ctx, s.userID, receiverID)
}

func (s serviceSignaling) SetOffer(ctx context.Context, callID string, offer webrtc.SessionDescription) error {
	_, err := s.svc.SetOffer(ctx, s.userID, callID, offer)
	return err
}

func (s serviceSignaling) Answer(ctx context.Context, callID string, answer webrtc.SessionDescription) error {
	_, err := s.svc.Answer(ctx, s.userID, callID, answer)
	return err
}

func (s serviceSignaling) Reject(ctx context.Context, callID string) error {
	_, err := s.svc.Reject(ctx, s.userID, callID)
	return err
}

func (s serviceSignaling) End(ctx context.Context, callID string) error {
	_, err := s.svc.End(ctx, s.userID, callID)
	return err
}

func (s serviceSignaling) AddCandidate(ctx context.Context, callID string, c webrtc.ICECandidateInit) error {
	_, err := s.svc.AddCandidate(ctx, s.userID, callID, c)
	return err
}

func (s serviceSignaling) WatchIncoming(ctx context.Context) (<-chan []models.Call, error) {
	return s.svc.WatchIncoming(ctx, s.userID), nil
}

func (s serviceSignaling) WatchCall(ctx context.Context, callID string) (<-chan models.Call, error) {
	return s.svc.WatchCall(ctx, s.userID, callID)
}

func (s serviceSignaling) WatchCandidates(ctx context.Context, callID string) (<-chan webrtc.ICECandidateInit, error) {
	candidates, err := s.svc.WatchCandidates(ctx, s.userID, callID)
	if err != nil {
		return nil, err
	}
	out := make(chan webrtc.ICECandidateInit)
	go func() {
		defer close(out)
		for c := range candidates {
			select {
			case out <- c.Init():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

var errNoRemoteDescription = errors.New("remote description not set")

// fakePeer gathers one host candidate when its local description is set and
// reports ICE connected once it has a remote description and a remote
// candidate.
type fakePeer struct {
	name string

	mu         sync.Mutex
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []Track
	closed     bool
	onCand     func(*webrtc.ICECandidateInit)
	onState    func(webrtc.ICEConnectionState)
}

func (p *fakePeer) AddTrack(t Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, t)
	return nil
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer from " + p.name}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, errNoRemoteDescription
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer from " + p.name}, nil
}

func (p *fakePeer) SetLocalDescription(sd webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = &sd
	onCand := p.onCand
	p.mu.Unlock()
	if onCand != nil {
		onCand(&webrtc.ICECandidateInit{Candidate: "candidate:" + p.name + " 1 udp 2122260223 10.0.0.1 5000 typ host"})
		onCand(nil)
	}
	return nil
}

func (p *fakePeer) SetRemoteDescription(sd webrtc.SessionDescription) error {
	p.mu.Lock()
	p.remote = &sd
	p.mu.Unlock()
	p.maybeConnect()
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if p.remote == nil {
		p.mu.Unlock()
		return errNoRemoteDescription
	}
	p.candidates = append(p.candidates, c)
	p.mu.Unlock()
	p.maybeConnect()
	return nil
}

func (p *fakePeer) maybeConnect() {
	p.mu.Lock()
	ready := p.remote != nil && len(p.candidates) > 0 && !p.closed
	onState := p.onState
	p.mu.Unlock()
	if ready && onState != nil {
		onState(webrtc.ICEConnectionStateConnected)
	}
}

func (p *fakePeer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCand = fn
}

func (p *fakePeer) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	onState := p.onState
	p.mu.Unlock()
	if onState != nil {
		onState(webrtc.ICEConnectionStateClosed)
	}
	return nil
}

func (p *fakePeer) snapshot() (local, remote *webrtc.SessionDescription, candidates []string, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.candidates {
		candidates = append(candidates, c.Candidate)
	}
	return p.local, p.remote, candidates, p.closed
}

// peerRecorder is a PeerFactory that keeps every peer it opened.
type peerRecorder struct {
	name string

	mu    sync.Mutex
	peers []*fakePeer
}

func (r *peerRecorder) factory(webrtc.Configuration) (PeerConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &fakePeer{name: r.name}
	r.peers = append(r.peers, p)
	return p, nil
}

func (r *peerRecorder) last() *fakePeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.peers) == 0 {
		return nil
	}
	return r.peers[len(r.peers)-1]
}

type fakeTrack struct {
	kind    webrtc.RTPCodecType
	stopped atomic.Bool
}

func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *fakeTrack) Local() webrtc.TrackLocal  { return nil }
func (t *fakeTrack) Stop()                     { t.stopped.Store(true) }

func (t *fakeTrack) ReadyState() string {
	if t.stopped.Load() {
		return TrackEnded
	}
	return TrackLive
}

type fakeStream struct {
	tracks []Track
}

func (s *fakeStream) Tracks() []Track { return s.tracks }

func (s *fakeStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// fakeMedia hands out fake tracks. videoErr fails requests that include
// video; err fails every request.
type fakeMedia struct {
	videoErr error
	err      error

	mu       sync.Mutex
	requests []Constraints
	streams  []*fakeStream
}

func (m *fakeMedia) GetUserMedia(_ context.Context, c Constraints) (MediaStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	if m.err != nil {
		return nil, m.err
	}
	if c.Video && m.videoErr != nil {
		return nil, m.videoErr
	}
	s := &fakeStream{}
	if c.Audio {
		s.tracks = append(s.tracks, &fakeTrack{kind: webrtc.RTPCodecTypeAudio})
	}
	if c.Video {
		s.tracks = append(s.tracks, &fakeTrack{kind: webrtc.RTPCodecTypeVideo})
	}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMedia) Requests() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Constraints(nil), m.requests...)
}

// allStopped reports whether every track handed out has ended.
func (m *fakeMedia) allStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.streams {
		for _, t := range s.tracks {
			if t.ReadyState() != TrackEnded {
				return false
			}
		}
	}
	return true
}

// stateLog records the states an agent passes through.
type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) hook(s State, _ models.Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) seen(s State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.states {
		if got == s {
			return true
		}
	}
	return false
}
