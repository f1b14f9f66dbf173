package repositories

import (
	"context"
	"errors"

	"github.com/bigyann/lumina/backend/internal/models"
	"gorm.io/gorm"
)

// ReviewRepository stores rated reviews of posts.
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewsByPostID(ctx context.Context, postID string) ([]models.Review, error)
	GetRatingSummary(ctx context.Context, postID string) (*RatingSummary, error)
	DeleteByPostID(ctx context.Context, postID string) error
}

// RatingSummary is the aggregate rating of a post.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type PostgresReviewRepository struct {
	db *gorm.DB
}

func NewPostgresReviewRepository(db *gorm.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{db: db}
}

func (r *PostgresReviewRepository) CreateReview(ctx context.Context, review *models.Review) error {
	err := r.db.WithContext(ctx).Create(review).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyReviewed
	}
	return err
}

func (r *PostgresReviewRepository) GetReviewsByPostID(ctx context.Context, postID string) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at DESC").Find(&reviews).Error
	return reviews, err
}

func (r *PostgresReviewRepository) GetRatingSummary(ctx context.Context, postID string) (*RatingSummary, error) {
	var summary RatingSummary
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("post_id = ?", postID).
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *PostgresReviewRepository) DeleteByPostID(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Review{}).Error
}
