package repositories

import (
	"context"
	"errors"

	"github.com/bigyann/lumina/backend/internal/models"
	"gorm.io/gorm"
)

// FriendshipRepository defines the interface for friendship data operations
type FriendshipRepository interface {
	SendFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequestByID(ctx context.Context, id string) (*models.FriendRequest, error)
	GetFriendRequestBetween(ctx context.Context, a, b string) (*models.FriendRequest, error)
	GetIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	GetOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	GetUserFriends(ctx context.Context, userID string) ([]models.User, error)
	AcceptFriendRequest(ctx context.Context, id string) error
	DeleteFriendRequest(ctx context.Context, id string) error
}

// PostgresFriendshipRepository implements FriendshipRepository for PostgreSQL
type PostgresFriendshipRepository struct {
	db *gorm.DB
}

// NewPostgresFriendshipRepository creates a new PostgresFriendshipRepository
func NewPostgresFriendshipRepository(db *gorm.DB) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

// SendFriendRequest inserts a pending request. An existing row for the pair in
// either direction is reported as ErrAlreadyFriends or ErrFriendRequestExists;
// a concurrent insert that slips past the lookup is stopped by the unique
// pair_key index.
func (r *PostgresFriendshipRepository) SendFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	existing, err := r.GetFriendRequestBetween(ctx, req.FromID, req.ToID)
	switch {
	case err == nil:
		return existingRequestError(existing)
	case !errors.Is(err, ErrFriendRequestNotFound):
		return err
	}

	req.Status = models.FriendRequestPending
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrFriendRequestExists
		}
		return err
	}
	return nil
}

func existingRequestError(req *models.FriendRequest) error {
	if req.Status == models.FriendRequestAccepted {
		return ErrAlreadyFriends
	}
	return ErrFriendRequestExists
}

func (r *PostgresFriendshipRepository) GetFriendRequestByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFriendRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// GetFriendRequestBetween finds the request for the pair regardless of
// direction.
func (r *PostgresFriendshipRepository) GetFriendRequestBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).Where("pair_key = ?", models.ChatID(a, b)).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFriendRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *PostgresFriendshipRepository) GetIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("to_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *PostgresFriendshipRepository) GetOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("from_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// GetUserFriends retrieves all accepted friends for a user with one query:
// the subquery picks the other party of every accepted row touching userID.
func (r *PostgresFriendshipRepository) GetUserFriends(ctx context.Context, userID string) ([]models.User, error) {
	db := r.db.WithContext(ctx)
	others := db.Model(&models.FriendRequest{}).
		Select("CASE WHEN from_id = ? THEN to_id ELSE from_id END", userID).
		Where("status = ? AND (from_id = ? OR to_id = ?)", models.FriendRequestAccepted, userID, userID)

	var friends []models.User
	if err := db.Where("id IN (?)", others).Order("name ASC").Find(&friends).Error; err != nil {
		return nil, err
	}
	return friends, nil
}

// AcceptFriendRequest moves a pending request to accepted.
func (r *PostgresFriendshipRepository) AcceptFriendRequest(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, models.FriendRequestPending).
		Update("status", models.FriendRequestAccepted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFriendRequestNotFound
	}
	return nil
}

// DeleteFriendRequest deletes a friend request
func (r *PostgresFriendshipRepository) DeleteFriendRequest(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FriendRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFriendRequestNotFound
	}
	return nil
}
