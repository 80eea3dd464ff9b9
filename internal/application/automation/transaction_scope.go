package automation

import (
	"context"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// TransactionScope provides transactional access to the automation engine's
// repositories. Everything inside Execute shares one database transaction.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories the automation engine
// mutates together: tasks with their assignments and audit trail, plus the
// workflow rows it reads and the order row the cascade completes. Role
// bindings are read through the transaction so a claim sees the freshest
// grants.
type TransactionalRepositories interface {
	TaskRepo() automation.TaskRepository
	AssignmentRepo() automation.AssignmentRepository
	TaskEventRepo() automation.TaskEventRepository
	RoleRepo() identity.RoleRepository
	OrderRepo() workflow.OrderRepository
	StepTaskRepo() workflow.StepTaskRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Used in tests.
type NoOpTransactionScope struct {
	taskRepo       automation.TaskRepository
	assignmentRepo automation.AssignmentRepository
	taskEventRepo  automation.TaskEventRepository
	roleRepo       identity.RoleRepository
	orderRepo      workflow.OrderRepository
	stepTaskRepo   workflow.StepTaskRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(
	taskRepo automation.TaskRepository,
	assignmentRepo automation.AssignmentRepository,
	taskEventRepo automation.TaskEventRepository,
	roleRepo identity.RoleRepository,
	orderRepo workflow.OrderRepository,
	stepTaskRepo workflow.StepTaskRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		taskRepo:       taskRepo,
		assignmentRepo: assignmentRepo,
		taskEventRepo:  taskEventRepo,
		roleRepo:       roleRepo,
		orderRepo:      orderRepo,
		stepTaskRepo:   stepTaskRepo,
	}
}

// Execute runs the function directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// TaskRepo returns the automation task repository
func (s *NoOpTransactionScope) TaskRepo() automation.TaskRepository { return s.taskRepo }

// AssignmentRepo returns the assignment repository
func (s *NoOpTransactionScope) AssignmentRepo() automation.AssignmentRepository {
	return s.assignmentRepo
}

// TaskEventRepo returns the task event repository
func (s *NoOpTransactionScope) TaskEventRepo() automation.TaskEventRepository {
	return s.taskEventRepo
}

// RoleRepo returns the role repository
func (s *NoOpTransactionScope) RoleRepo() identity.RoleRepository { return s.roleRepo }

// OrderRepo returns the order repository
func (s *NoOpTransactionScope) OrderRepo() workflow.OrderRepository { return s.orderRepo }

// StepTaskRepo returns the workflow step task repository
func (s *NoOpTransactionScope) StepTaskRepo() workflow.StepTaskRepository { return s.stepTaskRepo }
