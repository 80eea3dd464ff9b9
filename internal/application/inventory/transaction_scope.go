package inventory

import (
	"context"

	"github.com/opsflow/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// Every stock mutation and its audit row commit or roll back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the inventory repositories scoped to
// the current transaction.
type TransactionalRepositories interface {
	ItemRepo() inventory.ItemRepository
	TransactionRepo() inventory.TransactionRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Used in tests.
type NoOpTransactionScope struct {
	itemRepo        inventory.ItemRepository
	transactionRepo inventory.TransactionRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(itemRepo inventory.ItemRepository, transactionRepo inventory.TransactionRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{itemRepo: itemRepo, transactionRepo: transactionRepo}
}

// Execute runs the function directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ItemRepo returns the inventory item repository
func (s *NoOpTransactionScope) ItemRepo() inventory.ItemRepository { return s.itemRepo }

// TransactionRepo returns the inventory transaction repository
func (s *NoOpTransactionScope) TransactionRepo() inventory.TransactionRepository {
	return s.transactionRepo
}
