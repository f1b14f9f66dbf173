package repositories

import (
	"context"
	"errors"

	"github.com/bigyann/lumina/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	IncrementCount(ctx context.Context, name string, delta int) error
}

type MongoCategoryRepository struct {
	collection *mongo.Collection
}

func NewMongoCategoryRepository(db *mongo.Database) *MongoCategoryRepository {
	return &MongoCategoryRepository{collection: db.Collection("categories")}
}

func (r *MongoCategoryRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	_, err := r.collection.InsertOne(ctx, category)
	if mongo.IsDuplicateKeyError(err) {
		return ErrCategoryExists
	}
	return err
}

func (r *MongoCategoryRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	return findAll[models.Category](ctx, r.collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *MongoCategoryRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	if err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&category); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *MongoCategoryRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *MongoCategoryRepository) IncrementCount(ctx context.Context, name string, delta int) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"name": name}, bson.M{"$inc": bson.M{"count": delta}})
	return err
}
