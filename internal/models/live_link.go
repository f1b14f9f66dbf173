package models

import "time"

// LiveLink points at an external live broadcast.
type LiveLink struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	URL       string    `json:"url" bson:"url"`
	Platform  string    `json:"platform" bson:"platform"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type LiveLinkRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	URL      string `json:"url" validate:"required,url"`
	Platform string `json:"platform" validate:"max=40"`
	Active   *bool  `json:"active"`
}
