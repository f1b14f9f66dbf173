// Package callagent runs one side of a one-to-one WebRTC call against the
// call signaling API: it places and answers calls, swaps session
// descriptions and candidates through the shared call record, and tears
// media down when either side hangs up.
package callagent

import (
	"context"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/pion/webrtc/v3"
)

// Signaling is the agent's view of the call service, already bound to the
// signed-in user. Every write reports its outcome.
type Signaling interface {
	CreateCall(ctx context.Context, receiverID string) (*models.Call, error)
	SetOffer(ctx context.Context, callID string, offer webrtc.SessionDescription) error
	Answer(ctx context.Context, callID string, answer webrtc.SessionDescription) error
	Reject(ctx context.Context, callID string) error
	End(ctx context.Context, callID string) error
	AddCandidate(ctx context.Context, callID string, candidate webrtc.ICECandidateInit) error

	// WatchIncoming delivers the calls ringing for the user each time the
	// set changes. The channel closes when ctx ends.
	WatchIncoming(ctx context.Context) (<-chan []models.Call, error)
	// WatchCall delivers the call record each time it changes.
	WatchCall(ctx context.Context, callID string) (<-chan models.Call, error)
	// WatchCandidates delivers each candidate written by the other side once.
	WatchCandidates(ctx context.Context, callID string) (<-chan webrtc.ICECandidateInit, error)
}

// PeerConnection is the subset of a WebRTC peer connection the agent drives.
type PeerConnection interface {
	AddTrack(track Track) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sd webrtc.SessionDescription) error
	SetRemoteDescription(sd webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	// OnICECandidate registers fn for locally gathered candidates. fn gets
	// nil once gathering is complete.
	OnICECandidate(fn func(*webrtc.ICECandidateInit))
	OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState))
	Close() error
}

// PeerFactory opens a peer connection.
type PeerFactory func(cfg webrtc.Configuration) (PeerConnection, error)
