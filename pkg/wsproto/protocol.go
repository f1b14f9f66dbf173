// Package wsproto defines the JSON frames exchanged over /api/v1/ws.
package wsproto

import (
	"encoding/json"
	"fmt"
)

// Client actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionCallCreate  = "call.create"
	ActionCallOffer   = "call.offer"
	ActionCallAnswer  = "call.answer"
	ActionCallReject  = "call.reject"
	ActionCallEnd     = "call.end"
	ActionCandidate   = "call.candidate"
	ActionMessageSend = "message.send"
)

// Subscription topics.
const (
	TopicIncomingCalls = "calls.incoming"
	TopicCall          = "call"
	TopicCandidates    = "candidates"
	TopicConversation  = "conversation"
	TopicInbox         = "inbox"
)

// Server frame types.
const (
	FrameAck          = "ack"
	FrameError        = "error"
	FrameSnapshot     = "snapshot"
	FrameCandidate    = "candidate"
	FrameNotification = "notification"
)

// ClientFrame is a request from the client. ID is echoed back in the ack or
// error that answers it.
type ClientFrame struct {
	ID     string          `json:"id,omitempty"`
	Action string          `json:"action"`
	Topic  string          `json:"topic,omitempty"`
	CallID string          `json:"callId,omitempty"`
	PeerID string          `json:"peerId,omitempty"`
	Sub    string          `json:"sub,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ServerFrame is pushed by the server. Sub names the subscription a
// snapshot or candidate belongs to.
type ServerFrame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Sub   string          `json:"sub,omitempty"`
	Code  int             `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SubKey is the name of a subscription on a connection.
func SubKey(topic, callID, peerID string) (string, error) {
	switch topic {
	case TopicIncomingCalls, TopicInbox:
		return topic, nil
	case TopicCall, TopicCandidates:
		if callID == "" {
			return "", fmt.Errorf("topic %q needs callId", topic)
		}
		return topic + ":" + callID, nil
	case TopicConversation:
		if peerID == "" {
			return "", fmt.Errorf("topic %q needs peerId", topic)
		}
		return topic + ":" + peerID, nil
	}
	return "", fmt.Errorf("unknown topic %q", topic)
}

// Frame builds a server frame carrying v as its data.
func Frame(frameType, id, sub string, v any) (ServerFrame, error) {
	f := ServerFrame{Type: frameType, ID: id, Sub: sub}
	if v == nil {
		return f, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return f, err
	}
	f.Data = data
	return f, nil
}

// Request builds a client frame carrying v as its data.
func Request(id, action string, v any) (ClientFrame, error) {
	f := ClientFrame{ID: id, Action: action}
	if v == nil {
		return f, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return f, err
	}
	f.Data = data
	return f, nil
}
