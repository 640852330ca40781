package repository

import (
	"context"
	"time"

	"qaforum/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	SetRead(ctx context.Context, id uint, read bool) error
	SetReadOwned(ctx context.Context, userID uint, ids []uint, read bool) (int64, error)
	DeleteOwned(ctx context.Context, userID uint, ids []uint) (int64, error)
	List(ctx context.Context, userID uint, page Page) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	CountNewerOnQuestion(ctx context.Context, userID, questionID uint, after time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a NotificationRepository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, notFoundOr(err, "Notification", id)
	}
	return &n, nil
}

func (r *notificationRepository) SetRead(ctx context.Context, id uint, read bool) error {
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", read).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// SetReadOwned only touches rows owned by userID; other ids are ignored.
func (r *notificationRepository) SetReadOwned(ctx context.Context, userID uint, ids []uint, read bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", read)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOwned only removes rows owned by userID; other ids are ignored.
func (r *notificationRepository) DeleteOwned(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// List returns the user's notifications newest first.
func (r *notificationRepository) List(ctx context.Context, userID uint, page Page) ([]models.Notification, int64, error) {
	base := r.db.WithContext(ctx)

	var total int64
	if err := base.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var items []models.Notification
	err := base.Where("user_id = ?", userID).
		Scopes(page.apply).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *notificationRepository) CountNewerOnQuestion(ctx context.Context, userID, questionID uint, after time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND question_id = ? AND created_at > ?", userID, questionID, after).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
