package repositories

import (
	"context"

	"github.com/bigyann/lumina/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository stores direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.DirectMessage) error
	// GetConversation returns the limit most recent messages of chatID that
	// include participantID, in ascending timestamp order.
	GetConversation(ctx context.Context, chatID, participantID string, limit int) ([]models.DirectMessage, error)
	// GetRecentForParticipant returns the newest messages involving userID,
	// newest first.
	GetRecentForParticipant(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error)
	MarkRead(ctx context.Context, chatID, receiverID string) (int64, error)
}

type MongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection("direct_messages")}
}

func (r *MongoMessageRepository) CreateMessage(ctx context.Context, msg *models.DirectMessage) error {
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

func (r *MongoMessageRepository) GetConversation(ctx context.Context, chatID, participantID string, limit int) ([]models.DirectMessage, error) {
	filter := bson.M{"chatId": chatID, "participants": participantID}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	msgs, err := findAll[models.DirectMessage](ctx, r.collection, filter, opts)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (r *MongoMessageRepository) GetRecentForParticipant(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	return findAll[models.DirectMessage](ctx, r.collection, bson.M{"participants": userID}, opts)
}

// MarkRead flags every unread message addressed to receiverID in chatID.
func (r *MongoMessageRepository) MarkRead(ctx context.Context, chatID, receiverID string) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"chatId": chatID, "receiverId": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func reverseMessages(msgs []models.DirectMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
