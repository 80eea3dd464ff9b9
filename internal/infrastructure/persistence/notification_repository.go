package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/notification"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormNotificationRepository implements notification.Repository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new notification repository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// CreateBatch inserts one fan-out of notifications in a single statement
func (r *GormNotificationRepository) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&notifications).Error
}

// FindByID retrieves a notification by its ID
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	var n notification.Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("notification not found")
		}
		return nil, err
	}
	return &n, nil
}

// ListByRecipient returns a page of the recipient's notifications, newest first
func (r *GormNotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, filter shared.Filter) (shared.Paginated[*notification.Notification], error) {
	query := r.db.WithContext(ctx).Model(&notification.Notification{}).
		Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	return findPage[*notification.Notification](query, filter)
}

// Save persists the full notification row
func (r *GormNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Save(n).Error
}

// MarkAllRead stamps every unread notification for the recipient and returns
// how many rows changed
func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&notification.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Updates(map[string]interface{}{
			"read_at":    now,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

var _ notification.Repository = (*GormNotificationRepository)(nil)
