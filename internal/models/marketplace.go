package models

import "time"

type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingApproved ListingStatus = "approved"
	ListingRejected ListingStatus = "rejected"
	ListingSold     ListingStatus = "sold"
)

// PhoneListing is a second-hand phone offered for sale. New listings wait for
// moderation before they are shown publicly.
type PhoneListing struct {
	ID          string        `json:"id" bson:"_id"`
	Brand       string        `json:"brand" bson:"brand"`
	Model       string        `json:"model" bson:"model"`
	Storage     string        `json:"storage" bson:"storage"`
	Condition   string        `json:"condition" bson:"condition"`
	Price       float64       `json:"price" bson:"price"`
	Currency    string        `json:"currency" bson:"currency"`
	Location    string        `json:"location" bson:"location"`
	ContactInfo string        `json:"contactInfo" bson:"contactInfo"`
	Images      []string      `json:"images" bson:"images"`
	Description string        `json:"description" bson:"description"`
	Seller      UserCompact   `json:"seller" bson:"seller"`
	Status      ListingStatus `json:"status" bson:"status"`
	Timestamp   time.Time     `json:"timestamp" bson:"timestamp"`
}

// ListingFilter narrows the public listing query. Zero values do not filter.
type ListingFilter struct {
	Status    ListingStatus
	Brand     string
	Condition string
	MinPrice  float64
	MaxPrice  float64
	SellerID  string
}

// BuyerRequest is a wanted-ad for a phone.
type BuyerRequest struct {
	ID          string      `json:"id" bson:"_id"`
	Buyer       UserCompact `json:"buyer" bson:"buyer"`
	Model       string      `json:"model" bson:"model"`
	BudgetRange string      `json:"budgetRange" bson:"budgetRange"`
	Condition   string      `json:"condition" bson:"condition"`
	Location    string      `json:"location" bson:"location"`
	Description string      `json:"description" bson:"description"`
	Timestamp   time.Time   `json:"timestamp" bson:"timestamp"`
}

type CreateListingRequest struct {
	Brand       string   `json:"brand" validate:"required,max=60"`
	Model       string   `json:"model" validate:"required,max=100"`
	Storage     string   `json:"storage" validate:"max=30"`
	Condition   string   `json:"condition" validate:"required,oneof=new like_new good fair"`
	Price       float64  `json:"price" validate:"required,gt=0"`
	Currency    string   `json:"currency" validate:"omitempty,len=3"`
	Location    string   `json:"location" validate:"required,max=120"`
	ContactInfo string   `json:"contactInfo" validate:"required,max=200"`
	Images      []string `json:"images" validate:"max=8,dive,url"`
	Description string   `json:"description" validate:"max=2000"`
}

type UpdateListingStatusRequest struct {
	Status ListingStatus `json:"status" validate:"required,oneof=pending approved rejected sold"`
}

type CreateBuyerRequest struct {
	Model       string `json:"model" validate:"required,max=100"`
	BudgetRange string `json:"budgetRange" validate:"required,max=60"`
	Condition   string `json:"condition" validate:"omitempty,oneof=new like_new good fair any"`
	Location    string `json:"location" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}
