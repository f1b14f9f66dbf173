package models

import (
	"strings"
	"time"
	"unicode"
)

type PostStatus string

const (
	PostPublished PostStatus = "published"
	PostPending   PostStatus = "pending"
	PostDraft     PostStatus = "draft"
)

// Post is a blog article stored in MongoDB.
type Post struct {
	ID            string      `json:"id" bson:"_id"`
	Slug          string      `json:"slug" bson:"slug"`
	Title         string      `json:"title" bson:"title"`
	Excerpt       string      `json:"excerpt" bson:"excerpt"`
	Content       string      `json:"content" bson:"content"`
	CoverImage    string      `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	Author        UserCompact `json:"author" bson:"author"`
	Category      string      `json:"category" bson:"category"`
	Tags          []string    `json:"tags" bson:"tags"`
	Views         int64       `json:"views" bson:"views"`
	LikesCount    int64       `json:"likesCount" bson:"likesCount"`
	CommentsCount int64       `json:"commentsCount" bson:"commentsCount"`
	Status        PostStatus  `json:"status" bson:"status"`
	ReadTime      int         `json:"readTime" bson:"readTime"`
	CreatedAt     time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// PostFilter narrows a post listing.
type PostFilter struct {
	Status   PostStatus
	Category string
	Tag      string
	AuthorID string
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Title      string     `json:"title" validate:"required,min=3,max=200"`
	Excerpt    string     `json:"excerpt" validate:"max=500"`
	Content    string     `json:"content" validate:"required"`
	CoverImage string     `json:"coverImage" validate:"omitempty,url"`
	Category   string     `json:"category" validate:"required"`
	Tags       []string   `json:"tags" validate:"max=10,dive,min=1,max=40"`
	Status     PostStatus `json:"status" validate:"omitempty,oneof=published pending draft"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Title      string   `json:"title" validate:"omitempty,min=3,max=200"`
	Excerpt    string   `json:"excerpt" validate:"max=500"`
	Content    string   `json:"content"`
	CoverImage string   `json:"coverImage" validate:"omitempty,url"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags" validate:"max=10,dive,min=1,max=40"`
}

type UpdatePostStatusRequest struct {
	Status PostStatus `json:"status" validate:"required,oneof=published pending draft"`
}

const maxSlugLength = 100

// Slugify lowercases s, collapses every run of characters other than ASCII
// letters and digits into a single "-", trims leading and trailing dashes and
// caps the result at 100 characters.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// ReadTime estimates minutes to read content at 200 words per minute.
func ReadTime(content string) int {
	minutes := len(strings.Fields(content)) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}
