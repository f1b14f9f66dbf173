package models

import "time"

// Comment represents a comment on a post
type Comment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PostID     string    `json:"post_id" gorm:"size:64;index"`
	UserID     string    `json:"user_id" gorm:"size:128;index"`
	UserName   string    `json:"user_name"`
	UserAvatar string    `json:"user_avatar"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Review is a rated comment; a user reviews a post at most once.
type Review struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PostID     string    `json:"post_id" gorm:"size:64;uniqueIndex:idx_review_post_user"`
	UserID     string    `json:"user_id" gorm:"size:128;uniqueIndex:idx_review_post_user"`
	UserName   string    `json:"user_name"`
	UserAvatar string    `json:"user_avatar"`
	Rating     int       `json:"rating"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}

// UpdateCommentRequest defines the request body for updating an existing comment
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Content string `json:"content" validate:"max=1000"`
}
