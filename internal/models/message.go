package models

import (
	"sort"
	"strings"
	"time"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
)

// DirectMessage is one entry of a two-party conversation. Only Read ever
// changes after insertion.
type DirectMessage struct {
	ID           string      `json:"id" bson:"_id"`
	ChatID       string      `json:"chatId" bson:"chatId"`
	Participants []string    `json:"participants" bson:"participants"`
	SenderID     string      `json:"senderId" bson:"senderId"`
	ReceiverID   string      `json:"receiverId" bson:"receiverId"`
	Content      string      `json:"content" bson:"content"`
	Type         MessageType `json:"type" bson:"type"`
	MediaURL     string      `json:"mediaUrl,omitempty" bson:"mediaUrl,omitempty"`
	MimeType     string      `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	Read         bool        `json:"read" bson:"read"`
	Timestamp    time.Time   `json:"timestamp" bson:"timestamp"`
}

// ChatID is the deterministic channel id of the conversation between a and
// b: the sorted pair joined with "_". ChatID(a, b) == ChatID(b, a).
func ChatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ReceiverID string      `json:"receiver_id" validate:"required"`
	Content    string      `json:"content" validate:"max=4000"`
	Type       MessageType `json:"type" validate:"omitempty,oneof=text image audio"`
	MediaURL   string      `json:"media_url" validate:"omitempty,url"`
	MimeType   string      `json:"mime_type" validate:"max=100"`
}
