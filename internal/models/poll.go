package models

import "time"

type PollStatus string

const (
	PollActive PollStatus = "active"
	PollClosed PollStatus = "closed"
)

type PollOption struct {
	ID    string `json:"id" bson:"id"`
	Text  string `json:"text" bson:"text"`
	Image string `json:"image,omitempty" bson:"image,omitempty"`
	Votes int64  `json:"votes" bson:"votes"`
}

// Poll is a voting question. VotedUserIDs holds everyone who has voted, which
// is what limits each user to a single vote.
type Poll struct {
	ID            string       `json:"id" bson:"_id"`
	Question      string       `json:"question" bson:"question"`
	Description   string       `json:"description,omitempty" bson:"description,omitempty"`
	QuestionImage string       `json:"questionImage,omitempty" bson:"questionImage,omitempty"`
	Category      string       `json:"category" bson:"category"`
	Options       []PollOption `json:"options" bson:"options"`
	TotalVotes    int64        `json:"totalVotes" bson:"totalVotes"`
	VotedUserIDs  []string     `json:"-" bson:"votedUserIds"`
	Status        PollStatus   `json:"status" bson:"status"`
	CreatedAt     time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// HasVoted reports whether userID already voted.
func (p *Poll) HasVoted(userID string) bool {
	for _, id := range p.VotedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasOption reports whether optionID belongs to the poll.
func (p *Poll) HasOption(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

type PollOptionInput struct {
	Text  string `json:"text" validate:"required,max=200"`
	Image string `json:"image" validate:"omitempty,url"`
}

type CreatePollRequest struct {
	Question      string            `json:"question" validate:"required,min=3,max=300"`
	Description   string            `json:"description" validate:"max=1000"`
	QuestionImage string            `json:"questionImage" validate:"omitempty,url"`
	Category      string            `json:"category" validate:"max=60"`
	Options       []PollOptionInput `json:"options" validate:"required,min=2,max=10,dive"`
}

type UpdatePollRequest struct {
	Question      string `json:"question" validate:"omitempty,min=3,max=300"`
	Description   string `json:"description" validate:"max=1000"`
	QuestionImage string `json:"questionImage" validate:"omitempty,url"`
	Category      string `json:"category" validate:"max=60"`
}

type UpdatePollStatusRequest struct {
	Status PollStatus `json:"status" validate:"required,oneof=active closed"`
}

type VoteRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}
