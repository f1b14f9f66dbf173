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

// CallRepository stores call records and their candidate logs.
type CallRepository interface {
	CreateCall(ctx context.Context, call *models.Call) error
	GetCallByID(ctx context.Context, id string) (*models.Call, error)
	// SetOffer attaches the offer while the call is still ringing.
	SetOffer(ctx context.Context, id string, offer *models.SessionDescription, at time.Time) (*models.Call, error)
	// Transition moves the call to next when its current status allows it.
	// answer is stored alongside when non-nil.
	Transition(ctx context.Context, id string, next models.CallStatus, answer *models.SessionDescription, at time.Time) (*models.Call, error)
	ListRinging(ctx context.Context, receiverID string) ([]models.Call, error)
	ListStaleRinging(ctx context.Context, before time.Time) ([]models.Call, error)
	CountByStatus(ctx context.Context, status models.CallStatus) (int64, error)

	AddCandidate(ctx context.Context, candidate *models.IceCandidate) error
	ListCandidates(ctx context.Context, callID string, role models.CallRole) ([]models.IceCandidate, error)
}

type MongoCallRepository struct {
	calls      *mongo.Collection
	candidates *mongo.Collection
}

func NewMongoCallRepository(db *mongo.Database) *MongoCallRepository {
	return &MongoCallRepository{
		calls:      db.Collection("calls"),
		candidates: db.Collection("call_candidates"),
	}
}

func (r *MongoCallRepository) CreateCall(ctx context.Context, call *models.Call) error {
	_, err := r.calls.InsertOne(ctx, call)
	return err
}

func (r *MongoCallRepository) GetCallByID(ctx context.Context, id string) (*models.Call, error) {
	var call models.Call
	if err := r.calls.FindOne(ctx, bson.M{"_id": id}).Decode(&call); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return &call, nil
}

func (r *MongoCallRepository) SetOffer(ctx context.Context, id string, offer *models.SessionDescription, at time.Time) (*models.Call, error) {
	filter := bson.M{"_id": id, "status": models.CallRinging}
	update := bson.M{"$set": bson.M{"offer": offer, "updatedAt": at}}
	return r.updateOne(ctx, id, filter, update)
}

func (r *MongoCallRepository) Transition(ctx context.Context, id string, next models.CallStatus, answer *models.SessionDescription, at time.Time) (*models.Call, error) {
	sources := models.TransitionSources(next)
	if len(sources) == 0 {
		return nil, ErrInvalidTransition
	}
	set := bson.M{"status": next, "updatedAt": at}
	if answer != nil {
		set["answer"] = answer
	}
	filter := bson.M{"_id": id, "status": bson.M{"$in": sources}}
	return r.updateOne(ctx, id, filter, bson.M{"$set": set})
}

// updateOne applies a conditional update and returns the new document. When
// the condition fails it distinguishes a missing call from a call in the
// wrong state.
func (r *MongoCallRepository) updateOne(ctx context.Context, id string, filter, update bson.M) (*models.Call, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var call models.Call
	err := r.calls.FindOneAndUpdate(ctx, filter, update, opts).Decode(&call)
	if err == nil {
		return &call, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if _, err := r.GetCallByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInvalidTransition
}

func (r *MongoCallRepository) ListRinging(ctx context.Context, receiverID string) ([]models.Call, error) {
	filter := bson.M{"receiverId": receiverID, "status": models.CallRinging}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return findAll[models.Call](ctx, r.calls, filter, opts)
}

func (r *MongoCallRepository) ListStaleRinging(ctx context.Context, before time.Time) ([]models.Call, error) {
	filter := bson.M{"status": models.CallRinging, "timestamp": bson.M{"$lt": before}}
	return findAll[models.Call](ctx, r.calls, filter)
}

func (r *MongoCallRepository) CountByStatus(ctx context.Context, status models.CallStatus) (int64, error) {
	return r.calls.CountDocuments(ctx, bson.M{"status": status})
}

func (r *MongoCallRepository) AddCandidate(ctx context.Context, candidate *models.IceCandidate) error {
	_, err := r.candidates.InsertOne(ctx, candidate)
	return err
}

func (r *MongoCallRepository) ListCandidates(ctx context.Context, callID string, role models.CallRole) ([]models.IceCandidate, error) {
	filter := bson.M{"callId": callID, "role": role}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return findAll[models.IceCandidate](ctx, r.candidates, filter, opts)
}
