package workflow

import (
	"context"

	"github.com/opsflow/backend/internal/domain/workflow"
)

// TransactionScope provides transactional access to workflow repositories.
// Repository operations inside Execute share one database transaction and
// commit or roll back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the workflow repositories scoped to
// the current transaction.
type TransactionalRepositories interface {
	OrderRepo() workflow.OrderRepository
	StepTaskRepo() workflow.StepTaskRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Used in tests.
type NoOpTransactionScope struct {
	orderRepo    workflow.OrderRepository
	stepTaskRepo workflow.StepTaskRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(orderRepo workflow.OrderRepository, stepTaskRepo workflow.StepTaskRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{orderRepo: orderRepo, stepTaskRepo: stepTaskRepo}
}

// Execute runs the function directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// OrderRepo returns the order repository
func (s *NoOpTransactionScope) OrderRepo() workflow.OrderRepository {
	return s.orderRepo
}

// StepTaskRepo returns the step task repository
func (s *NoOpTransactionScope) StepTaskRepo() workflow.StepTaskRepository {
	return s.stepTaskRepo
}
