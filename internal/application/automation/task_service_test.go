package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/audit"
	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

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

// MockTaskEventRepository is a mock implementation of automation.TaskEventRepository
type MockTaskEventRepository struct {
	mock.Mock
}

func (m *MockTaskEventRepository) Append(ctx context.Context, event *automation.TaskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockTaskEventRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]*automation.TaskEvent, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*automation.TaskEvent), args.Error(1)
}

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

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, record *audit.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*audit.Record, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Record), args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*audit.Record], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*audit.Record]), args.Error(1)
}

// MockWorkflowOrderRepository is a mock implementation of workflow.OrderRepository
type MockWorkflowOrderRepository struct {
	mock.Mock
}

func (m *MockWorkflowOrderRepository) Create(ctx context.Context, order *workflow.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockWorkflowOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*workflow.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Order), args.Error(1)
}

func (m *MockWorkflowOrderRepository) SaveWithLock(ctx context.Context, order *workflow.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockWorkflowOrderRepository) List(ctx context.Context, filter workflow.OrderFilter) (shared.Paginated[*workflow.Order], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*workflow.Order]), args.Error(1)
}

// MockWorkflowStepRepository is a mock implementation of workflow.StepTaskRepository
type MockWorkflowStepRepository struct {
	mock.Mock
}

func (m *MockWorkflowStepRepository) CreateBatch(ctx context.Context, tasks []*workflow.WorkflowStepTask) error {
	args := m.Called(ctx, tasks)
	return args.Error(0)
}

func (m *MockWorkflowStepRepository) FindByID(ctx context.Context, id uuid.UUID) (*workflow.WorkflowStepTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.WorkflowStepTask), args.Error(1)
}

func (m *MockWorkflowStepRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*workflow.WorkflowStepTask, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*workflow.WorkflowStepTask), args.Error(1)
}

func (m *MockWorkflowStepRepository) CompleteActive(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, taskID, userID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockWorkflowStepRepository) ActivateIfPending(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, taskID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockWorkflowStepRepository) Save(ctx context.Context, task *workflow.WorkflowStepTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type capturingPublisher struct {
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type taskServiceFixture struct {
	svc         *TaskService
	tasks       *MockTaskRepository
	assignments *MockAssignmentRepository
	taskEvents  *MockTaskEventRepository
	users       *MockUserRepository
	roles       *MockRoleRepository
	auditor     *MockAuditRepository
	orders      *MockWorkflowOrderRepository
	steps       *MockWorkflowStepRepository
	publisher   *capturingPublisher
}

func newTaskServiceFixture() *taskServiceFixture {
	f := &taskServiceFixture{
		tasks:       new(MockTaskRepository),
		assignments: new(MockAssignmentRepository),
		taskEvents:  new(MockTaskEventRepository),
		users:       new(MockUserRepository),
		roles:       new(MockRoleRepository),
		auditor:     new(MockAuditRepository),
		orders:      new(MockWorkflowOrderRepository),
		steps:       new(MockWorkflowStepRepository),
		publisher:   &capturingPublisher{},
	}
	scope := NewNoOpTransactionScope(f.tasks, f.assignments, f.taskEvents, f.roles, f.orders, f.steps)
	f.svc = NewTaskService(scope, f.tasks, f.assignments, f.taskEvents, f.users, f.roles, f.auditor, zap.NewNop())
	f.svc.SetEventPublisher(f.publisher)
	return f
}

func newTestUser(admin bool) *identity.User {
	return &identity.User{
		BaseEntity:    shared.NewBaseEntity(),
		Username:      "worker1",
		IsSystemAdmin: admin,
		Active:        true,
	}
}

func openRoleTask(role identity.OperationalRole) *automation.AutomationTask {
	task := automation.NewTask(automation.TaskTypeRole, "Assemble items", uuid.New())
	task.Status = automation.TaskStatusOpen
	task.RequiredRole = &role
	return task
}

func TestClaimBindsPlaceholderAssignment(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)
	placeholder := automation.NewPlaceholderAssignment(task.ID, identity.RoleForeman, time.Now().UTC())

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleForeman}, nil)
	f.tasks.On("ClaimIfUnclaimed", mock.Anything, task.ID, user.ID, mock.AnythingOfType("time.Time")).Return(true, nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.assignments.On("FindByTaskAndUser", mock.Anything, task.ID, user.ID).Return([]*automation.TaskAssignment{}, nil)
	f.assignments.On("FindByTask", mock.Anything, task.ID).Return([]*automation.TaskAssignment{placeholder}, nil)
	f.assignments.On("Save", mock.Anything, placeholder).Return(nil)
	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{}).Return(task, nil)

	claimed, err := f.svc.Claim(context.Background(), task.ID, user.ID, false)
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedByUserID)
	assert.Equal(t, user.ID, *claimed.ClaimedByUserID)
	require.NotNil(t, placeholder.UserID)
	assert.Equal(t, user.ID, *placeholder.UserID)
	assert.Equal(t, automation.AssignmentStatusInProgress, placeholder.Status)

	require.Len(t, f.publisher.events, 1)
	_, ok := f.publisher.events[0].(*automation.TaskClaimed)
	assert.True(t, ok)

	f.tasks.AssertExpectations(t)
	f.assignments.AssertExpectations(t)
}

func TestClaimRaceLost(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleForeman}, nil)
	f.tasks.On("ClaimIfUnclaimed", mock.Anything, task.ID, user.ID, mock.AnythingOfType("time.Time")).Return(false, nil)

	_, err := f.svc.Claim(context.Background(), task.ID, user.ID, false)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrConflict.Code, domainErr.Code)
	assert.Empty(t, f.publisher.events)
}

func TestClaimReplayByCurrentClaimer(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)
	task.Status = automation.TaskStatusClaimed
	claimer := user.ID
	task.ClaimedByUserID = &claimer

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleForeman}, nil)
	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{}).Return(task, nil)

	got, err := f.svc.Claim(context.Background(), task.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Empty(t, f.publisher.events)
	f.taskEvents.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestClaimRequiresRole(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleDelivery}, nil)
	f.auditor.On("Append", mock.Anything, mock.AnythingOfType("*audit.Record")).Return(nil)

	_, err := f.svc.Claim(context.Background(), task.ID, user.ID, false)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrForbidden.Code, domainErr.Code)
	f.auditor.AssertCalled(t, "Append", mock.Anything, mock.AnythingOfType("*audit.Record"))
}

func TestClaimAlreadyClaimed(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)
	other := uuid.New()
	task.Status = automation.TaskStatusClaimed
	task.ClaimedByUserID = &other

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleForeman}, nil)

	_, err := f.svc.Claim(context.Background(), task.ID, user.ID, false)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrConflict.Code, domainErr.Code)
}

func TestClaimAdminOverride(t *testing.T) {
	f := newTaskServiceFixture()
	admin := newTestUser(true)
	task := openRoleTask(identity.RoleForeman)
	prior := uuid.New()
	task.Status = automation.TaskStatusClaimed
	task.ClaimedByUserID = &prior

	f.users.On("FindByID", mock.Anything, admin.ID).Return(admin, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, admin.ID).Return(identity.RoleSet{}, nil)
	f.tasks.On("SaveWithLock", mock.Anything, task).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.assignments.On("FindByTaskAndUser", mock.Anything, task.ID, admin.ID).Return([]*automation.TaskAssignment{}, nil)
	f.assignments.On("FindByTask", mock.Anything, task.ID).Return([]*automation.TaskAssignment{}, nil)
	f.assignments.On("Create", mock.Anything, mock.AnythingOfType("*automation.TaskAssignment")).Return(nil)
	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{}).Return(task, nil)
	f.auditor.On("Append", mock.Anything, mock.AnythingOfType("*audit.Record")).Return(nil)

	claimed, err := f.svc.Claim(context.Background(), task.ID, admin.ID, true)
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedByUserID)
	assert.Equal(t, admin.ID, *claimed.ClaimedByUserID)

	// TaskReassigned first, then TaskClaimed carrying the prior claimer.
	require.Len(t, f.publisher.events, 2)
	_, ok := f.publisher.events[0].(*automation.TaskReassigned)
	assert.True(t, ok)
	claimedEvent, ok := f.publisher.events[1].(*automation.TaskClaimed)
	require.True(t, ok)
	require.NotNil(t, claimedEvent.PriorClaimerID)
	assert.Equal(t, prior, *claimedEvent.PriorClaimerID)
}

func TestClaimAdminOverrideCompletedTask(t *testing.T) {
	f := newTaskServiceFixture()
	admin := newTestUser(true)
	task := openRoleTask(identity.RoleForeman)
	prior := uuid.New()
	completedAt := time.Now().UTC()
	task.Status = automation.TaskStatusCompleted
	task.ClaimedByUserID = &prior
	task.CompletedAt = &completedAt

	f.users.On("FindByID", mock.Anything, admin.ID).Return(admin, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, admin.ID).Return(identity.RoleSet{}, nil)
	f.tasks.On("SaveWithLock", mock.Anything, task).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.assignments.On("FindByTaskAndUser", mock.Anything, task.ID, admin.ID).Return([]*automation.TaskAssignment{}, nil)
	f.assignments.On("FindByTask", mock.Anything, task.ID).Return([]*automation.TaskAssignment{}, nil)
	f.assignments.On("Create", mock.Anything, mock.AnythingOfType("*automation.TaskAssignment")).Return(nil)
	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{}).Return(task, nil)
	f.auditor.On("Append", mock.Anything, mock.AnythingOfType("*audit.Record")).Return(nil)

	claimed, err := f.svc.Claim(context.Background(), task.ID, admin.ID, true)
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedByUserID)
	assert.Equal(t, admin.ID, *claimed.ClaimedByUserID)
	assert.Equal(t, automation.TaskStatusClaimed, task.Status)
	assert.Nil(t, task.CompletedAt)

	require.Len(t, f.publisher.events, 2)
	_, ok := f.publisher.events[0].(*automation.TaskReassigned)
	assert.True(t, ok)
}

func TestClaimCompletedWithoutOverride(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)
	task.Status = automation.TaskStatusCompleted

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleForeman}, nil)

	_, err := f.svc.Claim(context.Background(), task.ID, user.ID, false)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
	f.tasks.AssertNotCalled(t, "ClaimIfUnclaimed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetTaskHiddenFromNonParticipant(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)

	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{WithAssignments: true, WithEvents: true}).Return(task, nil)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.GetTask(context.Background(), task.ID, user.ID)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrForbidden.Code, domainErr.Code)
}

func TestGetTaskVisibleToAssignee(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)
	task.Assignments = []*automation.TaskAssignment{
		automation.NewUserAssignment(task.ID, user.ID, identity.RoleForeman, time.Now().UTC()),
	}

	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{WithAssignments: true, WithEvents: true}).Return(task, nil)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	got, err := f.svc.GetTask(context.Background(), task.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestGetTaskCompletedVisibleByRole(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)
	task.Status = automation.TaskStatusCompleted

	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{WithAssignments: true, WithEvents: true}).Return(task, nil)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.roles.On("RolesForUser", mock.Anything, user.ID).Return(identity.RoleSet{identity.RoleForeman}, nil)

	got, err := f.svc.GetTask(context.Background(), task.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestTaskEventsHiddenFromNonParticipant(t *testing.T) {
	f := newTaskServiceFixture()
	user := newTestUser(false)
	task := openRoleTask(identity.RoleForeman)

	f.tasks.On("FindByID", mock.Anything, task.ID, automation.LoadOptions{WithAssignments: true}).Return(task, nil)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.TaskEvents(context.Background(), task.ID, user.ID)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrForbidden.Code, domainErr.Code)
	f.taskEvents.AssertNotCalled(t, "FindByTask", mock.Anything, mock.Anything)
}

func TestCreateTaskOpensRoleTasks(t *testing.T) {
	f := newTaskServiceFixture()
	role := identity.RoleDelivery

	f.tasks.On("Create", mock.Anything, mock.AnythingOfType("*automation.AutomationTask")).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.assignments.On("Create", mock.Anything, mock.AnythingOfType("*automation.TaskAssignment")).Return(nil)

	task, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		Type:         automation.TaskTypeRole,
		Title:        "Deliver order",
		CreatorID:    uuid.New(),
		RequiredRole: &role,
	}, shared.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, automation.TaskStatusOpen, task.Status)

	// TaskCreated then TaskOpened.
	require.Len(t, f.publisher.events, 2)
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	f := newTaskServiceFixture()
	_, err := f.svc.CreateTask(context.Background(), CreateTaskInput{Type: automation.TaskTypeRole}, shared.SystemActor)
	require.Error(t, err)
	f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnsureRestockTaskRaisesOnce(t *testing.T) {
	f := newTaskServiceFixture()
	item, err := inventory.NewItem("SKU-100", "Widget", 2, 5)
	require.NoError(t, err)

	f.tasks.On("FindOpenRestockByInventory", mock.Anything, item.ID).Return([]*automation.AutomationTask{}, nil)
	f.tasks.On("Create", mock.Anything, mock.AnythingOfType("*automation.AutomationTask")).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.assignments.On("Create", mock.Anything, mock.AnythingOfType("*automation.TaskAssignment")).Return(nil)

	created, err := f.svc.EnsureRestockTask(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, created)

	f.tasks.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(task *automation.AutomationTask) bool {
		return task.Type == automation.TaskTypeRestock &&
			task.Priority == automation.PriorityHigh &&
			task.RequiredRole != nil && *task.RequiredRole == identity.RoleWarehouse
	}))
}

func TestEnsureRestockTaskDeduplicates(t *testing.T) {
	f := newTaskServiceFixture()
	item, err := inventory.NewItem("SKU-100", "Widget", 2, 5)
	require.NoError(t, err)

	existing := automation.NewTask(automation.TaskTypeRestock, "Restock Widget", uuid.Nil)
	f.tasks.On("FindOpenRestockByInventory", mock.Anything, item.ID).Return([]*automation.AutomationTask{existing}, nil)

	created, err := f.svc.EnsureRestockTask(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, created)
	f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestResolveRestockTasks(t *testing.T) {
	f := newTaskServiceFixture()
	item, err := inventory.NewItem("SKU-100", "Widget", 50, 5)
	require.NoError(t, err)

	open := automation.NewTask(automation.TaskTypeRestock, "Restock Widget", uuid.Nil)
	open.Status = automation.TaskStatusOpen
	f.tasks.On("FindOpenRestockByInventory", mock.Anything, item.ID).Return([]*automation.AutomationTask{open}, nil)
	f.tasks.On("SaveWithLock", mock.Anything, open).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)

	require.NoError(t, f.svc.ResolveRestockTasks(context.Background(), item))
	assert.Equal(t, automation.TaskStatusCompleted, open.Status)
	require.Len(t, f.publisher.events, 1)
	_, ok := f.publisher.events[0].(*automation.TaskCompleted)
	assert.True(t, ok)
}

func TestCancelRequiresCreatorOrAdmin(t *testing.T) {
	f := newTaskServiceFixture()
	caller := newTestUser(false)
	task := automation.NewTask(automation.TaskTypeRole, "Deliver order", uuid.New())
	task.Status = automation.TaskStatusOpen

	f.users.On("FindByID", mock.Anything, caller.ID).Return(caller, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)

	_, err := f.svc.Cancel(context.Background(), task.ID, caller.ID)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrForbidden.Code, domainErr.Code)
}

func TestCancelByCreator(t *testing.T) {
	f := newTaskServiceFixture()
	caller := newTestUser(false)
	task := automation.NewTask(automation.TaskTypeRole, "Deliver order", caller.ID)
	task.Status = automation.TaskStatusOpen

	f.users.On("FindByID", mock.Anything, caller.ID).Return(caller, nil)
	f.tasks.On("LockByID", mock.Anything, task.ID).Return(task, nil)
	f.tasks.On("SaveWithLock", mock.Anything, task).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)

	cancelled, err := f.svc.Cancel(context.Background(), task.ID, caller.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.TaskStatusCancelled, cancelled.Status)
}

func TestReassignAdminOnly(t *testing.T) {
	f := newTaskServiceFixture()
	caller := newTestUser(false)

	f.users.On("FindByID", mock.Anything, caller.ID).Return(caller, nil)

	_, err := f.svc.Reassign(context.Background(), ReassignInput{TaskID: uuid.New(), ToUserID: uuid.New()}, caller.ID)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrForbidden.Code, domainErr.Code)
}
