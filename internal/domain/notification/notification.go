package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// Notification is one persisted message for one recipient. Realtime push
// to the chat surface is handled outside this service.
type Notification struct {
	shared.BaseEntity
	RecipientID uuid.UUID      `gorm:"type:uuid;not null;index"`
	EventType   string         `gorm:"size:64;not null"`
	Title       string         `gorm:"size:255;not null"`
	Body        string         `gorm:"type:text"`
	EntityType  string         `gorm:"size:64"`
	EntityID    *uuid.UUID     `gorm:"type:uuid"`
	Metadata    shared.JSONMap `gorm:"type:jsonb"`
	ReadAt      *time.Time
}

// TableName returns the database table name
func (Notification) TableName() string {
	return "notifications"
}

// New creates a notification for a recipient
func New(recipientID uuid.UUID, eventType, title, body string) *Notification {
	return &Notification{
		BaseEntity:  shared.NewBaseEntity(),
		RecipientID: recipientID,
		EventType:   eventType,
		Title:       title,
		Body:        body,
	}
}

// MarkRead records when the recipient read the notification
func (n *Notification) MarkRead(now time.Time) {
	if n.ReadAt == nil {
		read := now
		n.ReadAt = &read
	}
}

// Repository persists notifications
type Repository interface {
	CreateBatch(ctx context.Context, notifications []*Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, filter shared.Filter) (shared.Paginated[*Notification], error)
	Save(ctx context.Context, n *Notification) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error)
}
