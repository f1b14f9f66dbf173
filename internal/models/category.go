package models

import "time"

// Category groups posts. Count tracks the number of posts filed under it.
type Category struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Slug        string    `json:"slug" bson:"slug"`
	Description string    `json:"description" bson:"description"`
	Icon        string    `json:"icon" bson:"icon"`
	Count       int64     `json:"count" bson:"count"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=60"`
	Description string `json:"description" validate:"max=300"`
	Icon        string `json:"icon" validate:"max=60"`
}
