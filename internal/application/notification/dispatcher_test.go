package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/notification"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*identity.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.User), args.Error(1)
}

func (m *MockUserRepository) ListAdmins(ctx context.Context) ([]*identity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.User), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockRoleRepository is a mock implementation of identity.RoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) RolesForUser(ctx context.Context, userID uuid.UUID) (identity.RoleSet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.RoleSet), args.Error(1)
}

func (m *MockRoleRepository) HoldersOfRole(ctx context.Context, role identity.OperationalRole) ([]uuid.UUID, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRoleRepository) Grant(ctx context.Context, userID uuid.UUID, role identity.OperationalRole) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockRoleRepository) Revoke(ctx context.Context, userID uuid.UUID, role identity.OperationalRole) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

// MockTaskRepository is a mock implementation of automation.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *automation.AutomationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) FindByID(ctx context.Context, id uuid.UUID, opts automation.LoadOptions) (*automation.AutomationTask, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.AutomationTask), args.Error(1)
}

func (m *MockTaskRepository) LockByID(ctx context.Context, id uuid.UUID) (*automation.AutomationTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.AutomationTask), args.Error(1)
}

func (m *MockTaskRepository) FindByOrder(ctx context.Context, orderID uuid.UUID, opts automation.LoadOptions) ([]*automation.AutomationTask, error) {
	args := m.Called(ctx, orderID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.AutomationTask), args.Error(1)
}

func (m *MockTaskRepository) FindRootByOrder(ctx context.Context, orderID uuid.UUID, opts automation.LoadOptions) (*automation.AutomationTask, error) {
	args := m.Called(ctx, orderID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.AutomationTask), args.Error(1)
}

func (m *MockTaskRepository) FindActiveByOrderAndRole(ctx context.Context, orderID uuid.UUID, role identity.OperationalRole) ([]*automation.AutomationTask, error) {
	args := m.Called(ctx, orderID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.AutomationTask), args.Error(1)
}

func (m *MockTaskRepository) FindOpenRestockByInventory(ctx context.Context, inventoryID uuid.UUID) ([]*automation.AutomationTask, error) {
	args := m.Called(ctx, inventoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.AutomationTask), args.Error(1)
}

func (m *MockTaskRepository) ClaimIfUnclaimed(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, taskID, userID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskRepository) SaveWithLock(ctx context.Context, task *automation.AutomationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) Save(ctx context.Context, task *automation.AutomationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) List(ctx context.Context, filter automation.TaskFilter) (shared.Paginated[*automation.AutomationTask], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*automation.AutomationTask]), args.Error(1)
}

func (m *MockTaskRepository) AvailableForRole(ctx context.Context, role identity.OperationalRole) ([]*automation.AutomationTask, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.AutomationTask), args.Error(1)
}

// MockAssignmentRepository is a mock implementation of automation.AssignmentRepository
type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) Create(ctx context.Context, assignment *automation.TaskAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepository) Save(ctx context.Context, assignment *automation.TaskAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*automation.TaskAssignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.TaskAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]*automation.TaskAssignment, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.TaskAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) FindByTaskAndUser(ctx context.Context, taskID uuid.UUID, userID uuid.UUID) ([]*automation.TaskAssignment, error) {
	args := m.Called(ctx, taskID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.TaskAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) FindByOrderAndRole(ctx context.Context, orderID uuid.UUID, role identity.OperationalRole) ([]*automation.TaskAssignment, error) {
	args := m.Called(ctx, orderID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.TaskAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*automation.TaskAssignment], error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(shared.Paginated[*automation.TaskAssignment]), args.Error(1)
}

// MockOrderRepository is a mock implementation of workflow.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *workflow.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*workflow.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Order), args.Error(1)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, order *workflow.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) List(ctx context.Context, filter workflow.OrderFilter) (shared.Paginated[*workflow.Order], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*workflow.Order]), args.Error(1)
}

type dispatcherFixture struct {
	dispatcher    *Dispatcher
	notifications *MockNotificationRepository
	users         *MockUserRepository
	roles         *MockRoleRepository
	tasks         *MockTaskRepository
	assignments   *MockAssignmentRepository
	orders        *MockOrderRepository
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		notifications: new(MockNotificationRepository),
		users:         new(MockUserRepository),
		roles:         new(MockRoleRepository),
		tasks:         new(MockTaskRepository),
		assignments:   new(MockAssignmentRepository),
		orders:        new(MockOrderRepository),
	}
	f.dispatcher = NewDispatcher(f.notifications, f.users, f.roles, f.tasks, f.assignments, f.orders, zap.NewNop())
	return f
}

func adminUser() *identity.User {
	return &identity.User{BaseEntity: shared.NewBaseEntity(), Username: "admin", IsSystemAdmin: true}
}

func TestDispatchAwaitingConfirmationNotifiesCreator(t *testing.T) {
	f := newDispatcherFixture()

	creator := uuid.New()
	order := workflow.NewOrder(workflow.OrderTypeAgentRestock, creator, nil)
	order.Status = workflow.OrderStatusAwaitingConfirmation
	event := workflow.NewOrderStatusChanged(order, workflow.OrderStatusInProgress, shared.EventActor{UserID: uuid.New()})

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.notifications.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*notification.Notification")).Return(nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), event))

	f.notifications.AssertCalled(t, "CreateBatch", mock.Anything, mock.MatchedBy(func(rows []*notification.Notification) bool {
		return len(rows) == 1 && rows[0].RecipientID == creator && rows[0].Title == "Confirmation needed"
	}))
}

func TestDispatchIgnoresOtherStatusChanges(t *testing.T) {
	f := newDispatcherFixture()

	order := workflow.NewOrder(workflow.OrderTypeAgentRestock, uuid.New(), nil)
	order.Status = workflow.OrderStatusInProgress
	event := workflow.NewOrderStatusChanged(order, workflow.OrderStatusSubmitted, shared.EventActor{UserID: uuid.New()})

	require.NoError(t, f.dispatcher.Handle(context.Background(), event))
	f.notifications.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestDispatchLowStockFansOutToWarehouseRoles(t *testing.T) {
	f := newDispatcherFixture()

	admin := adminUser()
	warehouseUser := uuid.New()
	foremanUser := uuid.New()
	item, err := inventory.NewItem("SKU-100", "Widget", 2, 5)
	require.NoError(t, err)
	event := inventory.NewLowStock(item)

	f.users.On("ListAdmins", mock.Anything).Return([]*identity.User{admin}, nil)
	f.roles.On("HoldersOfRole", mock.Anything, identity.RoleWarehouse).Return([]uuid.UUID{warehouseUser}, nil)
	f.roles.On("HoldersOfRole", mock.Anything, identity.RoleForeman).Return([]uuid.UUID{foremanUser, warehouseUser}, nil)
	f.notifications.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*notification.Notification")).Return(nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), event))

	// Duplicates collapse to one row per recipient.
	f.notifications.AssertCalled(t, "CreateBatch", mock.Anything, mock.MatchedBy(func(rows []*notification.Notification) bool {
		return len(rows) == 3
	}))
}

func TestDispatchTaskClaimedExcludesClaimer(t *testing.T) {
	f := newDispatcherFixture()

	claimer := uuid.New()
	teammate := uuid.New()
	role := identity.RoleForeman
	task := automation.NewTask(automation.TaskTypeRole, "Assemble items", uuid.New())
	task.RequiredRole = &role
	event := automation.NewTaskClaimed(task, claimer, nil, shared.EventActor{UserID: claimer})

	f.users.On("ListAdmins", mock.Anything).Return([]*identity.User{}, nil)
	f.roles.On("HoldersOfRole", mock.Anything, identity.RoleForeman).Return([]uuid.UUID{claimer, teammate}, nil)
	f.notifications.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*notification.Notification")).Return(nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), event))

	f.notifications.AssertCalled(t, "CreateBatch", mock.Anything, mock.MatchedBy(func(rows []*notification.Notification) bool {
		return len(rows) == 1 && rows[0].RecipientID == teammate
	}))
}

func TestDispatchOrderCompletedNotifiesParticipants(t *testing.T) {
	f := newDispatcherFixture()

	creator := uuid.New()
	claimer := uuid.New()
	order := workflow.NewOrder(workflow.OrderTypeAgentRetail, creator, nil)
	event := workflow.NewOrderCompleted(order, shared.EventActor{UserID: claimer})

	task := automation.NewTask(automation.TaskTypeRole, "Deliver order", creator)
	task.ClaimedByUserID = &claimer

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.tasks.On("FindByOrder", mock.Anything, order.ID, automation.LoadOptions{WithAssignments: true}).Return([]*automation.AutomationTask{task}, nil)
	f.notifications.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*notification.Notification")).Return(nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), event))

	// The claimer is the actor, so only the creator remains.
	f.notifications.AssertCalled(t, "CreateBatch", mock.Anything, mock.MatchedBy(func(rows []*notification.Notification) bool {
		return len(rows) == 1 && rows[0].RecipientID == creator
	}))
}

func TestDispatcherEventTypes(t *testing.T) {
	f := newDispatcherFixture()
	types := f.dispatcher.EventTypes()
	assert.Contains(t, types, inventory.EventLowStock)
	assert.Contains(t, types, workflow.EventOrderCompleted)
	assert.Contains(t, types, automation.EventTaskClaimed)
}
