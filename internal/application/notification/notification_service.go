package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/notification"
	"github.com/opsflow/backend/internal/domain/shared"
)

// Service serves a user's notification inbox.
type Service struct {
	notifications notification.Repository
}

// NewService creates a notification Service
func NewService(notifications notification.Repository) *Service {
	return &Service{notifications: notifications}
}

// List returns a page of the recipient's notifications
func (s *Service) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, filter shared.Filter) (shared.Paginated[*notification.Notification], error) {
	return s.notifications.ListByRecipient(ctx, recipientID, unreadOnly, filter)
}

// MarkRead marks one notification read. Only the recipient may do so.
func (s *Service) MarkRead(ctx context.Context, notificationID uuid.UUID, recipientID uuid.UUID) (*notification.Notification, error) {
	row, err := s.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if row.RecipientID != recipientID {
		return nil, shared.ErrForbidden.WithMessage("notification belongs to another user")
	}
	row.MarkRead(time.Now().UTC())
	if err := s.notifications.Save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// MarkAllRead marks every unread notification of the recipient read and
// returns how many were affected
func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.notifications.MarkAllRead(ctx, recipientID, time.Now().UTC())
}
