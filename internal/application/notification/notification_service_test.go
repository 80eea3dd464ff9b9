package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsflow/backend/internal/domain/notification"
	"github.com/opsflow/backend/internal/domain/shared"
)

// MockNotificationRepository is a mock implementation of notification.Repository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	args := m.Called(ctx, notifications)
	return args.Error(0)
}

func (m *MockNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, filter shared.Filter) (shared.Paginated[*notification.Notification], error) {
	args := m.Called(ctx, recipientID, unreadOnly, filter)
	return args.Get(0).(shared.Paginated[*notification.Notification]), args.Error(1)
}

func (m *MockNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, recipientID, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestMarkRead(t *testing.T) {
	repo := new(MockNotificationRepository)
	svc := NewService(repo)

	recipient := uuid.New()
	row := notification.New(recipient, "task.claimed", "Task claimed", "")

	repo.On("FindByID", mock.Anything, row.ID).Return(row, nil)
	repo.On("Save", mock.Anything, row).Return(nil)

	got, err := svc.MarkRead(context.Background(), row.ID, recipient)
	require.NoError(t, err)
	assert.NotNil(t, got.ReadAt)
	repo.AssertExpectations(t)
}

func TestMarkReadForeignRecipient(t *testing.T) {
	repo := new(MockNotificationRepository)
	svc := NewService(repo)

	row := notification.New(uuid.New(), "task.claimed", "Task claimed", "")
	repo.On("FindByID", mock.Anything, row.ID).Return(row, nil)

	_, err := svc.MarkRead(context.Background(), row.ID, uuid.New())
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrForbidden.Code, domainErr.Code)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestMarkAllRead(t *testing.T) {
	repo := new(MockNotificationRepository)
	svc := NewService(repo)

	recipient := uuid.New()
	repo.On("MarkAllRead", mock.Anything, recipient, mock.AnythingOfType("time.Time")).Return(int64(3), nil)

	marked, err := svc.MarkAllRead(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
}

func TestMarkReadIsIdempotentOnTimestamp(t *testing.T) {
	row := notification.New(uuid.New(), "task.claimed", "Task claimed", "")
	first := time.Now().UTC()
	row.MarkRead(first)
	row.MarkRead(first.Add(time.Hour))
	require.NotNil(t, row.ReadAt)
	assert.Equal(t, first, *row.ReadAt)
}
