package repositories

import (
	"context"
	"time"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
)

// NotificationRepositoryImpl implements domain.NotificationRepository using GORM
type NotificationRepositoryImpl struct {
	base
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) domain.NotificationRepository {
	return &NotificationRepositoryImpl{base{db: db}}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *domain.Notification) error {
	return r.conn(ctx).Create(n).Error
}

func (r *NotificationRepositoryImpl) ListByUser(ctx context.Context, userID uint, unreadOnly bool, page domain.Page) ([]domain.Notification, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if unreadOnly {
			db = db.Where("read_at IS NULL")
		}
		return db
	}
	return findPage[domain.Notification](r.conn(ctx), scope, "created_at DESC, id DESC", page)
}

func (r *NotificationRepositoryImpl) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// MarkRead only touches the caller's own notification
func (r *NotificationRepositoryImpl) MarkRead(ctx context.Context, userID, id uint) error {
	res := r.conn(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", time.Now()))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) MarkAllRead(ctx context.Context, userID uint) error {
	return r.conn(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now()).Error
}
