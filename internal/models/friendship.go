package models

import (
	"time"

	"gorm.io/gorm"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
)

// FriendRequest is a request between two users. PairKey is the canonical
// ordered pair and carries a unique index, so at most one row can exist for a
// pair of users in either direction.
type FriendRequest struct {
	ID        string              `json:"id" gorm:"primaryKey;size:36"`
	FromID    string              `json:"from_id" gorm:"size:128;index;not null"`
	ToID      string              `json:"to_id" gorm:"size:128;index;not null"`
	PairKey   string              `json:"-" gorm:"size:260;uniqueIndex;not null"`
	Status    FriendRequestStatus `json:"status" gorm:"size:20;not null;default:pending;index"`
	CreatedAt time.Time           `json:"timestamp"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// BeforeCreate fills the canonical pair key.
func (f *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	f.PairKey = ChatID(f.FromID, f.ToID)
	return nil
}

// Other returns the party of the request that is not userID.
func (f *FriendRequest) Other(userID string) string {
	if f.FromID == userID {
		return f.ToID
	}
	return f.FromID
}

// CreateFriendRequest defines the request body for sending a friend request
type CreateFriendRequest struct {
	ToID string `json:"to_id" validate:"required"`
}
