package repositories

import (
	"context"

	"github.com/bigyann/lumina/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LiveLinkRepository interface {
	CreateLiveLink(ctx context.Context, link *models.LiveLink) error
	ListLiveLinks(ctx context.Context, activeOnly bool) ([]models.LiveLink, error)
	UpdateLiveLink(ctx context.Context, link *models.LiveLink) error
	DeleteLiveLink(ctx context.Context, id string) error
}

type MongoLiveLinkRepository struct {
	collection *mongo.Collection
}

func NewMongoLiveLinkRepository(db *mongo.Database) *MongoLiveLinkRepository {
	return &MongoLiveLinkRepository{collection: db.Collection("live_links")}
}

func (r *MongoLiveLinkRepository) CreateLiveLink(ctx context.Context, link *models.LiveLink) error {
	_, err := r.collection.InsertOne(ctx, link)
	return err
}

func (r *MongoLiveLinkRepository) ListLiveLinks(ctx context.Context, activeOnly bool) ([]models.LiveLink, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return findAll[models.LiveLink](ctx, r.collection, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoLiveLinkRepository) UpdateLiveLink(ctx context.Context, link *models.LiveLink) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": link.ID}, bson.M{"$set": bson.M{
		"title":    link.Title,
		"url":      link.URL,
		"platform": link.Platform,
		"active":   link.Active,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrLiveLinkNotFound
	}
	return nil
}

func (r *MongoLiveLinkRepository) DeleteLiveLink(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrLiveLinkNotFound
	}
	return nil
}
