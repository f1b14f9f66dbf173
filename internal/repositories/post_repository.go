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

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListPosts(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, id string, status models.PostStatus) error
	DeletePost(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	IncrementLikesCount(ctx context.Context, id string, delta int) error
	IncrementCommentsCount(ctx context.Context, id string, delta int) error
	CountByStatus(ctx context.Context, status models.PostStatus) (int64, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoPostRepository) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *MongoPostRepository) findOne(ctx context.Context, filter bson.M) (*models.Post, error) {
	var post models.Post
	if err := r.collection.FindOne(ctx, filter).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *MongoPostRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	return n > 0, err
}

// ListPosts returns a page of posts matching filter, newest first, and the
// total number of matches.
func (r *MongoPostRepository) ListPosts(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.Tag != "" {
		q["tags"] = filter.Tag
	}
	if filter.AuthorID != "" {
		q["author.id"] = filter.AuthorID
	}

	total, err := r.collection.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	posts, err := findAll[models.Post](ctx, r.collection, q, opts)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *MongoPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"title":      post.Title,
			"excerpt":    post.Excerpt,
			"content":    post.Content,
			"coverImage": post.CoverImage,
			"category":   post.Category,
			"tags":       post.Tags,
			"readTime":   post.ReadTime,
			"updatedAt":  post.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": post.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) UpdateStatus(ctx context.Context, id string, status models.PostStatus) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) IncrementViews(ctx context.Context, id string) error {
	return r.inc(ctx, id, "views", 1)
}

func (r *MongoPostRepository) IncrementLikesCount(ctx context.Context, id string, delta int) error {
	return r.inc(ctx, id, "likesCount", delta)
}

func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, id string, delta int) error {
	return r.inc(ctx, id, "commentsCount", delta)
}

func (r *MongoPostRepository) inc(ctx context.Context, id, field string, delta int) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	return err
}

func (r *MongoPostRepository) CountByStatus(ctx context.Context, status models.PostStatus) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": status})
}
