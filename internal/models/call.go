package models

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type CallStatus string

const (
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
	CallRejected  CallStatus = "rejected"
	CallEnded     CallStatus = "ended"
)

// callTransitions lists, per target status, the statuses it may be entered
// from. Status never moves backwards; rejected and ended are terminal.
var callTransitions = map[CallStatus][]CallStatus{
	CallConnected: {CallRinging},
	CallRejected:  {CallRinging},
	CallEnded:     {CallRinging, CallConnected},
}

// TransitionSources returns the statuses from which a call may move to
// next, or nil when next cannot be entered at all.
func TransitionSources(next CallStatus) []CallStatus {
	return callTransitions[next]
}

// CanTransition reports whether from -> to is a legal move.
func (s CallStatus) CanTransition(to CallStatus) bool {
	for _, from := range callTransitions[to] {
		if from == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s CallStatus) Terminal() bool {
	return s == CallRejected || s == CallEnded
}

// CallRole identifies which side of a call wrote a candidate.
type CallRole string

const (
	RoleCaller   CallRole = "caller"
	RoleReceiver CallRole = "receiver"
)

// Remote returns the opposite role.
func (r CallRole) Remote() CallRole {
	if r == RoleCaller {
		return RoleReceiver
	}
	return RoleCaller
}

// SessionDescription is the stored form of an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type" bson:"type"`
	SDP  string `json:"sdp" bson:"sdp"`
}

// NewSessionDescription converts a pion description for storage.
func NewSessionDescription(sd webrtc.SessionDescription) *SessionDescription {
	return &SessionDescription{Type: sd.Type.String(), SDP: sd.SDP}
}

// WebRTC converts the stored description back to pion's type.
func (s *SessionDescription) WebRTC() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(s.Type), SDP: s.SDP}
}

// Call is the shared signaling record of a one-to-one call.
type Call struct {
	ID             string              `json:"id" bson:"_id"`
	CallerID       string              `json:"callerId" bson:"callerId"`
	CallerName     string              `json:"callerName" bson:"callerName"`
	CallerAvatar   string              `json:"callerAvatar" bson:"callerAvatar"`
	ReceiverID     string              `json:"receiverId" bson:"receiverId"`
	ReceiverName   string              `json:"receiverName" bson:"receiverName"`
	ReceiverAvatar string              `json:"receiverAvatar" bson:"receiverAvatar"`
	Status         CallStatus          `json:"status" bson:"status"`
	Offer          *SessionDescription `json:"offer,omitempty" bson:"offer,omitempty"`
	Answer         *SessionDescription `json:"answer,omitempty" bson:"answer,omitempty"`
	Timestamp      time.Time           `json:"timestamp" bson:"timestamp"`
	UpdatedAt      time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// RoleOf returns the role userID plays in the call.
func (c *Call) RoleOf(userID string) (CallRole, bool) {
	switch userID {
	case c.CallerID:
		return RoleCaller, true
	case c.ReceiverID:
		return RoleReceiver, true
	}
	return "", false
}

// PeerOf returns the other participant's id.
func (c *Call) PeerOf(userID string) string {
	if userID == c.CallerID {
		return c.ReceiverID
	}
	return c.CallerID
}

// IceCandidate is one entry of a call's per-role candidate log.
type IceCandidate struct {
	ID               string    `json:"id" bson:"_id"`
	CallID           string    `json:"callId" bson:"callId"`
	Role             CallRole  `json:"role" bson:"role"`
	Candidate        string    `json:"candidate" bson:"candidate"`
	SDPMid           *string   `json:"sdpMid,omitempty" bson:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16   `json:"sdpMLineIndex,omitempty" bson:"sdpMLineIndex,omitempty"`
	UsernameFragment *string   `json:"usernameFragment,omitempty" bson:"usernameFragment,omitempty"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
}

// Init converts the stored candidate to pion's init struct.
func (c *IceCandidate) Init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// CreateCallRequest is the body of POST /calls.
type CreateCallRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

// SessionDescriptionRequest carries an offer or an answer.
type SessionDescriptionRequest struct {
	Type string `json:"type" validate:"required,oneof=offer answer"`
	SDP  string `json:"sdp" validate:"required"`
}

// CandidateRequest carries one locally discovered candidate.
type CandidateRequest struct {
	Candidate        string  `json:"candidate" validate:"required"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

// Init converts the request body to pion's init struct.
func (r CandidateRequest) Init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        r.Candidate,
		SDPMid:           r.SDPMid,
		SDPMLineIndex:    r.SDPMLineIndex,
		UsernameFragment: r.UsernameFragment,
	}
}
