package models

import "time"

// Like represents a like on a post. (post_id, user_id) is unique.
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"size:64;uniqueIndex:idx_like_post_user"`
	UserID    string    `json:"user_id" gorm:"size:128;uniqueIndex:idx_like_post_user"`
	CreatedAt time.Time `json:"created_at"`
}
