package repositories

import (
	"context"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetByRecipientID(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error)
	GetGrouped(ctx context.Context, recipientID string, now time.Time) (*GroupedNotifications, error)
	GetUnreadCount(ctx context.Context, recipientID string) (int64, error)
	MarkAsRead(ctx context.Context, notificationID uint, recipientID string) error
	MarkAllAsRead(ctx context.Context, recipientID string) error
}

// GroupedNotifications buckets notifications by age.
type GroupedNotifications struct {
	Today     []models.Notification `json:"today"`
	Yesterday []models.Notification `json:"yesterday"`
	ThisWeek  []models.Notification `json:"thisWeek"`
	Older     []models.Notification `json:"older"`
}

// groupNotifications buckets ns (newest first) relative to now.
func groupNotifications(ns []models.Notification, now time.Time) *GroupedNotifications {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	g := &GroupedNotifications{
		Today:     []models.Notification{},
		Yesterday: []models.Notification{},
		ThisWeek:  []models.Notification{},
		Older:     []models.Notification{},
	}
	for _, n := range ns {
		switch {
		case !n.CreatedAt.Before(todayStart):
			g.Today = append(g.Today, n)
		case !n.CreatedAt.Before(yesterdayStart):
			g.Yesterday = append(g.Yesterday, n)
		case !n.CreatedAt.Before(weekStart):
			g.ThisWeek = append(g.ThisWeek, n)
		default:
			g.Older = append(g.Older, n)
		}
	}
	return g
}

// groupedLimit caps how many notifications feed the grouped view.
const groupedLimit = 200

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *postgresNotificationRepository) GetByRecipientID(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetGrouped(ctx context.Context, recipientID string, now time.Time) (*GroupedNotifications, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(groupedLimit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return groupNotifications(notifications, now), nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Count(&count).Error
	return count, err
}

// MarkAsRead only touches notifications addressed to recipientID.
func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID uint, recipientID string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Update("is_read", true).Error
}
