package sales

import (
	"context"

	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/sales"
)

// TransactionScope provides transactional access to the sales repositories.
// A sale row and its stock decrement commit or roll back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories a sale mutates in one
// transaction: the sale itself plus the inventory item and its audit trail.
type TransactionalRepositories interface {
	SaleRepo() sales.SaleRepository
	ItemRepo() inventory.ItemRepository
	InventoryTransactionRepo() inventory.TransactionRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Used in tests.
type NoOpTransactionScope struct {
	saleRepo        sales.SaleRepository
	itemRepo        inventory.ItemRepository
	transactionRepo inventory.TransactionRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(saleRepo sales.SaleRepository, itemRepo inventory.ItemRepository, transactionRepo inventory.TransactionRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{saleRepo: saleRepo, itemRepo: itemRepo, transactionRepo: transactionRepo}
}

// Execute runs the function directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SaleRepo returns the sale repository
func (s *NoOpTransactionScope) SaleRepo() sales.SaleRepository { return s.saleRepo }

// ItemRepo returns the inventory item repository
func (s *NoOpTransactionScope) ItemRepo() inventory.ItemRepository { return s.itemRepo }

// InventoryTransactionRepo returns the inventory transaction repository
func (s *NoOpTransactionScope) InventoryTransactionRepo() inventory.TransactionRepository {
	return s.transactionRepo
}
