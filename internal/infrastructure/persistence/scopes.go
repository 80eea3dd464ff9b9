package persistence

import (
	"context"

	"gorm.io/gorm"

	appautomation "github.com/opsflow/backend/internal/application/automation"
	appinventory "github.com/opsflow/backend/internal/application/inventory"
	appsales "github.com/opsflow/backend/internal/application/sales"
	appworkflow "github.com/opsflow/backend/internal/application/workflow"
	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// GormWorkflowScope implements the workflow transaction scope. Each Execute
// opens one transaction and hands the callback repositories bound to it.
type GormWorkflowScope struct {
	db *gorm.DB
}

// NewGormWorkflowScope creates a workflow transaction scope
func NewGormWorkflowScope(db *gorm.DB) *GormWorkflowScope {
	return &GormWorkflowScope{db: db}
}

// Execute runs fn inside a database transaction
func (s *GormWorkflowScope) Execute(ctx context.Context, fn func(repos appworkflow.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&workflowTxRepos{tx: tx})
	})
}

type workflowTxRepos struct {
	tx *gorm.DB
}

func (r *workflowTxRepos) OrderRepo() workflow.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *workflowTxRepos) StepTaskRepo() workflow.StepTaskRepository {
	return NewGormStepTaskRepository(r.tx)
}

var _ appworkflow.TransactionScope = (*GormWorkflowScope)(nil)

// GormAutomationScope implements the automation transaction scope
type GormAutomationScope struct {
	db *gorm.DB
}

// NewGormAutomationScope creates an automation transaction scope
func NewGormAutomationScope(db *gorm.DB) *GormAutomationScope {
	return &GormAutomationScope{db: db}
}

// Execute runs fn inside a database transaction
func (s *GormAutomationScope) Execute(ctx context.Context, fn func(repos appautomation.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&automationTxRepos{tx: tx})
	})
}

type automationTxRepos struct {
	tx *gorm.DB
}

func (r *automationTxRepos) TaskRepo() automation.TaskRepository {
	return NewGormTaskRepository(r.tx)
}

func (r *automationTxRepos) AssignmentRepo() automation.AssignmentRepository {
	return NewGormAssignmentRepository(r.tx)
}

func (r *automationTxRepos) TaskEventRepo() automation.TaskEventRepository {
	return NewGormTaskEventRepository(r.tx)
}

func (r *automationTxRepos) RoleRepo() identity.RoleRepository {
	return NewGormRoleRepository(r.tx)
}

func (r *automationTxRepos) OrderRepo() workflow.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *automationTxRepos) StepTaskRepo() workflow.StepTaskRepository {
	return NewGormStepTaskRepository(r.tx)
}

var _ appautomation.TransactionScope = (*GormAutomationScope)(nil)

// GormInventoryScope implements the inventory transaction scope
type GormInventoryScope struct {
	db *gorm.DB
}

// NewGormInventoryScope creates an inventory transaction scope
func NewGormInventoryScope(db *gorm.DB) *GormInventoryScope {
	return &GormInventoryScope{db: db}
}

// Execute runs fn inside a database transaction
func (s *GormInventoryScope) Execute(ctx context.Context, fn func(repos appinventory.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&inventoryTxRepos{tx: tx})
	})
}

type inventoryTxRepos struct {
	tx *gorm.DB
}

func (r *inventoryTxRepos) ItemRepo() inventory.ItemRepository {
	return NewGormInventoryRepository(r.tx)
}

func (r *inventoryTxRepos) TransactionRepo() inventory.TransactionRepository {
	return NewGormInventoryTransactionRepository(r.tx)
}

var _ appinventory.TransactionScope = (*GormInventoryScope)(nil)

// GormSalesScope implements the sales transaction scope
type GormSalesScope struct {
	db *gorm.DB
}

// NewGormSalesScope creates a sales transaction scope
func NewGormSalesScope(db *gorm.DB) *GormSalesScope {
	return &GormSalesScope{db: db}
}

// Execute runs fn inside a database transaction
func (s *GormSalesScope) Execute(ctx context.Context, fn func(repos appsales.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&salesTxRepos{tx: tx})
	})
}

type salesTxRepos struct {
	tx *gorm.DB
}

func (r *salesTxRepos) SaleRepo() sales.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *salesTxRepos) ItemRepo() inventory.ItemRepository {
	return NewGormInventoryRepository(r.tx)
}

func (r *salesTxRepos) InventoryTransactionRepo() inventory.TransactionRepository {
	return NewGormInventoryTransactionRepository(r.tx)
}

var _ appsales.TransactionScope = (*GormSalesScope)(nil)
