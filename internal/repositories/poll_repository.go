package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PollRepository interface {
	CreatePoll(ctx context.Context, poll *models.Poll) error
	GetPollByID(ctx context.Context, id string) (*models.Poll, error)
	ListPolls(ctx context.Context, status models.PollStatus, skip, limit int64) ([]models.Poll, error)
	UpdatePoll(ctx context.Context, poll *models.Poll) error
	UpdateStatus(ctx context.Context, id string, status models.PollStatus) error
	DeletePoll(ctx context.Context, id string) error
	// Vote records userID's vote for optionID. It fails with ErrAlreadyVoted,
	// ErrPollClosed, ErrOptionNotFound or ErrPollNotFound without changing
	// any counter.
	Vote(ctx context.Context, pollID, optionID, userID string) (*models.Poll, error)
	CountByStatus(ctx context.Context, status models.PollStatus) (int64, error)
}

type MongoPollRepository struct {
	collection *mongo.Collection
}

func NewMongoPollRepository(db *mongo.Database) *MongoPollRepository {
	return &MongoPollRepository{collection: db.Collection("polls")}
}

func (r *MongoPollRepository) CreatePoll(ctx context.Context, poll *models.Poll) error {
	_, err := r.collection.InsertOne(ctx, poll)
	return err
}

func (r *MongoPollRepository) GetPollByID(ctx context.Context, id string) (*models.Poll, error) {
	var poll models.Poll
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&poll); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return &poll, nil
}

func (r *MongoPollRepository) ListPolls(ctx context.Context, status models.PollStatus, skip, limit int64) ([]models.Poll, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return findAll[models.Poll](ctx, r.collection, filter, opts)
}

func (r *MongoPollRepository) UpdatePoll(ctx context.Context, poll *models.Poll) error {
	poll.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": poll.ID}, bson.M{"$set": bson.M{
		"question":      poll.Question,
		"description":   poll.Description,
		"questionImage": poll.QuestionImage,
		"category":      poll.Category,
		"updatedAt":     poll.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPollNotFound
	}
	return nil
}

func (r *MongoPollRepository) UpdateStatus(ctx context.Context, id string, status models.PollStatus) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPollNotFound
	}
	return nil
}

func (r *MongoPollRepository) DeletePoll(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPollNotFound
	}
	return nil
}

// Vote is a single conditional update: it only matches an active poll that
// has the option and does not yet list the voter.
func (r *MongoPollRepository) Vote(ctx context.Context, pollID, optionID, userID string) (*models.Poll, error) {
	filter := bson.M{
		"_id":          pollID,
		"status":       models.PollActive,
		"options.id":   optionID,
		"votedUserIds": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$inc":  bson.M{"options.$.votes": 1, "totalVotes": 1},
		"$push": bson.M{"votedUserIds": userID},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var poll models.Poll
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&poll)
	if err == nil {
		return &poll, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := r.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return nil, voteRejection(current, optionID, userID)
}

// voteRejection explains why a vote on p could not be applied.
func voteRejection(p *models.Poll, optionID, userID string) error {
	switch {
	case p.Status != models.PollActive:
		return ErrPollClosed
	case !p.HasOption(optionID):
		return ErrOptionNotFound
	case p.HasVoted(userID):
		return ErrAlreadyVoted
	}
	return ErrVoteNotApplied
}

func (r *MongoPollRepository) CountByStatus(ctx context.Context, status models.PollStatus) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": status})
}
