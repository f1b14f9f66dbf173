package models

import "time"

type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
	NotificationMissedCall     NotificationType = "missed_call"
	NotificationPostApproved   NotificationType = "post_approved"
	NotificationListingUpdate  NotificationType = "listing_update"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	Type        NotificationType `json:"type" gorm:"size:30;index"`
	ActorID     string           `json:"actor_id" gorm:"size:128;index"`
	RecipientID string           `json:"recipient_id" gorm:"size:128;index"`
	TargetID    string           `json:"target_id"`
	TargetType  string           `json:"target_type" gorm:"size:20"` // friend_request, call, post, listing
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index"`
}
