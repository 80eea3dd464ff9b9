package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// StepCompletionHook runs after a workflow step transitions to done. The
// automation engine implements it to drive task chaining and cascade
// completion without a package dependency from this engine onto it.
type StepCompletionHook interface {
	OnStepCompleted(ctx context.Context, order *workflow.Order, step *workflow.WorkflowStepTask, actor shared.EventActor) error
}

// NoOpStepCompletionHook ignores step completions.
type NoOpStepCompletionHook struct{}

// OnStepCompleted does nothing
func (NoOpStepCompletionHook) OnStepCompleted(context.Context, *workflow.Order, *workflow.WorkflowStepTask, shared.EventActor) error {
	return nil
}

// CreateOrderInput carries the order creation parameters.
type CreateOrderInput struct {
	Type             string
	CreatorID        uuid.UUID
	RelatedChannelID *string
	Metadata         shared.JSONMap
}

// OrderService is the order and workflow-step engine. It compiles orders
// into step sequences and owns every order status transition.
type OrderService struct {
	scope          TransactionScope
	orders         workflow.OrderRepository
	steps          workflow.StepTaskRepository
	eventPublisher shared.EventPublisher
	hook           StepCompletionHook
	logger         *zap.Logger
}

// NewOrderService creates an OrderService
func NewOrderService(scope TransactionScope, orders workflow.OrderRepository, steps workflow.StepTaskRepository, logger *zap.Logger) *OrderService {
	return &OrderService{
		scope:  scope,
		orders: orders,
		steps:  steps,
		hook:   NoOpStepCompletionHook{},
		logger: logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetStepCompletionHook sets the hook invoked after step completions
func (s *OrderService) SetStepCompletionHook(hook StepCompletionHook) {
	s.hook = hook
}

// CreateOrder persists a new order together with its compiled step tasks.
// The first step starts active. Automation task creation is reactive to the
// published event and never rolls back the order.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput, actor shared.EventActor) (*workflow.Order, []*workflow.WorkflowStepTask, error) {
	orderType, err := workflow.ParseOrderType(input.Type)
	if err != nil {
		return nil, nil, err
	}

	order := workflow.NewOrder(orderType, input.CreatorID, nil)
	order.RelatedChannelID = input.RelatedChannelID
	normalizeOrderMetadata(order, input.Metadata)

	stepTasks := workflow.BuildStepTasks(order, time.Now().UTC())

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.OrderRepo().Create(ctx, order); err != nil {
			return err
		}
		return repos.StepTaskRepo().CreateBatch(ctx, stepTasks)
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, workflow.NewOrderCreated(order, len(stepTasks), actor))

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_type", string(order.Type)),
		zap.Int("steps", len(stepTasks)))

	return order, stepTasks, nil
}

// GetOrder loads an order with its step tasks
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*workflow.Order, []*workflow.WorkflowStepTask, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	stepTasks, err := s.steps.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, stepTasks, nil
}

// ListOrders returns a filtered page of orders
func (s *OrderService) ListOrders(ctx context.Context, filter workflow.OrderFilter) (shared.Paginated[*workflow.Order], error) {
	return s.orders.List(ctx, filter)
}

// ActiveStep returns the currently active step of an order, if any
func (s *OrderService) ActiveStep(ctx context.Context, orderID uuid.UUID) (*workflow.WorkflowStepTask, error) {
	stepTasks, err := s.steps.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, task := range stepTasks {
		if task.Status == workflow.StepStatusActive {
			return task, nil
		}
	}
	return nil, nil
}

// CompleteStep performs the guarded transition of a step to done, activates
// the next step and recomputes the order status, all in one transaction.
// The guarded UPDATE is the single source of correctness: exactly one
// concurrent attempt can succeed.
func (s *OrderService) CompleteStep(ctx context.Context, stepTaskID uuid.UUID, userID uuid.UUID, actor shared.EventActor) (*workflow.WorkflowStepTask, error) {
	now := time.Now().UTC()

	var (
		completed *workflow.WorkflowStepTask
		order     *workflow.Order
		events    []shared.DomainEvent
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		updated, err := repos.StepTaskRepo().CompleteActive(ctx, stepTaskID, userID, now)
		if err != nil {
			return err
		}
		if !updated {
			return s.classifyFailedCompletion(ctx, repos, stepTaskID, userID)
		}

		completed, err = repos.StepTaskRepo().FindByID(ctx, stepTaskID)
		if err != nil {
			return err
		}
		events = append(events, workflow.NewStepCompleted(completed, actor))

		stepTasks, err := repos.StepTaskRepo().FindByOrder(ctx, completed.OrderID)
		if err != nil {
			return err
		}

		activated, err := s.activateNext(ctx, repos, stepTasks, completed, now)
		if err != nil {
			return err
		}
		if activated != nil {
			events = append(events, workflow.NewStepActivated(activated, actor))
		}

		order, err = repos.OrderRepo().FindByID(ctx, completed.OrderID)
		if err != nil {
			return err
		}
		if next := recomputeOrderStatus(order, stepTasks); next != order.Status {
			if order.SetStatus(next, actor) {
				if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
					return err
				}
				events = append(events, order.GetDomainEvents()...)
				order.ClearDomainEvents()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events...)

	if err := s.hook.OnStepCompleted(ctx, order, completed, actor); err != nil {
		s.logger.Error("step completion hook failed",
			zap.String("order_id", order.ID.String()),
			zap.String("step_key", completed.StepKey),
			zap.Error(err))
	}

	return completed, nil
}

// classifyFailedCompletion turns a missed guard into a precise error by
// re-reading the row inside the same transaction.
func (s *OrderService) classifyFailedCompletion(ctx context.Context, repos TransactionalRepositories, stepTaskID uuid.UUID, userID uuid.UUID) error {
	step, err := repos.StepTaskRepo().FindByID(ctx, stepTaskID)
	if err != nil {
		return shared.ErrNotFound.WithMessage("workflow step not found")
	}
	switch {
	case step.Status == workflow.StepStatusActive && step.AssignedUserID != nil && *step.AssignedUserID != userID:
		return shared.ErrForbidden.WithMessage("workflow step is assigned to another user")
	case step.IsDone():
		return shared.ErrConflict.WithMessage(fmt.Sprintf("workflow step %s was already completed", step.StepKey))
	default:
		return shared.ErrInvalidState.WithMessage(fmt.Sprintf("workflow step %s is %s, not active", step.StepKey, step.Status))
	}
}

// activateNext promotes the next pending step. Sequential order first, then
// any later pending required step so a role with no further steps does not
// stall the order.
func (s *OrderService) activateNext(ctx context.Context, repos TransactionalRepositories, stepTasks []*workflow.WorkflowStepTask, completed *workflow.WorkflowStepTask, now time.Time) (*workflow.WorkflowStepTask, error) {
	var candidate *workflow.WorkflowStepTask
	for _, task := range stepTasks {
		if task.Status != workflow.StepStatusPending || task.Position <= completed.Position {
			continue
		}
		if candidate == nil || task.Position < candidate.Position {
			candidate = task
		}
	}
	if candidate == nil {
		for _, task := range stepTasks {
			if task.Status == workflow.StepStatusPending && task.Required {
				if candidate == nil || task.Position < candidate.Position {
					candidate = task
				}
			}
		}
	}
	if candidate == nil {
		return nil, nil
	}
	activated, err := repos.StepTaskRepo().ActivateIfPending(ctx, candidate.ID, now)
	if err != nil {
		return nil, err
	}
	if !activated {
		return nil, nil
	}
	candidate.Status = workflow.StepStatusActive
	activatedAt := now
	candidate.ActivatedAt = &activatedAt
	return candidate, nil
}

// recomputeOrderStatus derives the order status from its steps. Rules are
// evaluated in order; the first match wins. The completed transition is
// suppressed while any required step remains non-done.
func recomputeOrderStatus(order *workflow.Order, stepTasks []*workflow.WorkflowStepTask) workflow.OrderStatus {
	var deliverDone bool
	var confirm *workflow.WorkflowStepTask
	anyActive := false
	allRequiredDone := true
	for _, task := range stepTasks {
		switch task.StepKey {
		case workflow.StepDeliverItems:
			deliverDone = task.Status == workflow.StepStatusDone
		case workflow.StepConfirmReceived:
			confirm = task
		}
		if task.Status == workflow.StepStatusActive {
			anyActive = true
		}
		if task.Required && !task.IsDone() {
			allRequiredDone = false
		}
	}
	switch {
	case deliverDone && confirm != nil && confirm.Status != workflow.StepStatusDone:
		return workflow.OrderStatusAwaitingConfirmation
	case anyActive:
		return workflow.OrderStatusInProgress
	case allRequiredDone:
		return workflow.OrderStatusCompleted
	default:
		return order.Status
	}
}

func (s *OrderService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish workflow events", zap.Error(err))
	}
}

// normalizeOrderMetadata extracts the well-known fields out of a free-form
// form payload into dedicated columns, preserving the original payload
// under the formPayload key.
func normalizeOrderMetadata(order *workflow.Order, metadata shared.JSONMap) {
	if metadata == nil {
		order.Metadata = shared.JSONMap{}
		return
	}
	normalized := shared.JSONMap{"formPayload": metadata.Clone()}
	order.DeliveryLocation = firstString(metadata, "deliveryLocation", "delivery_location", "location")
	order.CustomerName = firstString(metadata, "customerName", "customer_name")
	order.CustomerPhone = firstString(metadata, "customerPhone", "customer_phone", "phone")
	if items, ok := metadata["items"]; ok {
		normalized["items"] = items
	}
	order.Metadata = normalized
}

func firstString(metadata shared.JSONMap, keys ...string) string {
	for _, key := range keys {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
