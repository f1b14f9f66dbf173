package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// findAll runs a find and decodes every document. It never returns a nil
// slice so empty results encode as [] in JSON.
func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureIndexes creates the secondary indexes the Mongo repositories query by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		"direct_messages": {
			{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		"calls": {
			{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		"call_candidates": {
			{Keys: bson.D{{Key: "callId", Value: 1}, {Key: "role", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		"posts": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"categories": {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"phone_listings": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
	for name, idx := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
