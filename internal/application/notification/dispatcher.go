package notification

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/notification"
	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// Dispatcher turns domain events into persisted notifications, one row per
// recipient. Realtime push is the messaging subsystem's concern; this only
// decides who hears about what.
type Dispatcher struct {
	notifications notification.Repository
	users         identity.UserRepository
	roles         identity.RoleRepository
	tasks         automation.TaskRepository
	assignments   automation.AssignmentRepository
	orders        workflow.OrderRepository
	logger        *zap.Logger
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(
	notifications notification.Repository,
	users identity.UserRepository,
	roles identity.RoleRepository,
	tasks automation.TaskRepository,
	assignments automation.AssignmentRepository,
	orders workflow.OrderRepository,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		roles:         roles,
		tasks:         tasks,
		assignments:   assignments,
		orders:        orders,
		logger:        logger,
	}
}

// EventTypes returns the subscribed event types
func (d *Dispatcher) EventTypes() []string {
	return []string{
		automation.EventTaskClaimed,
		automation.EventTaskReassigned,
		automation.EventTaskCompleted,
		workflow.EventOrderCompleted,
		workflow.EventOrderStatusChanged,
		inventory.EventLowStock,
		sales.EventSaleCompleted,
	}
}

// Handle computes the recipient set for an event and writes one
// notification per recipient
func (d *Dispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		recipients []uuid.UUID
		title      string
		body       string
		err        error
	)

	switch e := event.(type) {
	case *automation.TaskClaimed:
		recipients, err = d.claimRecipients(ctx, e)
		title = "Task claimed"
		body = "A task in your role's queue was claimed."
	case *automation.TaskReassigned:
		recipients, err = d.reassignRecipients(ctx, e)
		title = "Task reassigned"
		body = "A task you were involved with was reassigned."
	case *automation.TaskCompleted:
		recipients, err = d.taskCompletionRecipients(ctx, e)
		title = "Task completed"
		body = "A task you participate in was completed."
	case *workflow.OrderCompleted:
		recipients, err = d.orderParticipants(ctx, e.AggregateID())
		title = "Order completed"
		body = "An order you participate in was completed."
	case *workflow.OrderStatusChanged:
		if e.NewStatus != workflow.OrderStatusAwaitingConfirmation {
			return nil
		}
		order, lookupErr := d.orders.FindByID(ctx, e.AggregateID())
		if lookupErr != nil {
			return lookupErr
		}
		recipients = []uuid.UUID{order.CreatedByUserID}
		title = "Confirmation needed"
		body = "Your order was delivered and awaits your confirmation."
	case *inventory.LowStock:
		recipients, err = d.lowStockRecipients(ctx)
		title = "Low stock: " + e.ProductName
		body = "Stock for " + e.ProductID + " fell to its threshold."
	case *sales.SaleCompleted:
		recipients, err = d.adminIDs(ctx)
		title = "Sale recorded"
		body = "A sale of " + e.ProductID + " was recorded."
	default:
		return nil
	}
	if err != nil {
		return err
	}

	recipients = dedupe(recipients, actorOf(event))
	if len(recipients) == 0 {
		return nil
	}

	rows := make([]*notification.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		row := notification.New(recipient, event.EventType(), title, body)
		row.EntityType = event.AggregateType()
		entityID := event.AggregateID()
		row.EntityID = &entityID
		rows = append(rows, row)
	}
	if err := d.notifications.CreateBatch(ctx, rows); err != nil {
		return err
	}
	d.logger.Debug("notifications dispatched",
		zap.String("event_type", event.EventType()),
		zap.Int("recipients", len(rows)))
	return nil
}

func (d *Dispatcher) claimRecipients(ctx context.Context, event *automation.TaskClaimed) ([]uuid.UUID, error) {
	recipients, err := d.adminIDs(ctx)
	if err != nil {
		return nil, err
	}
	if event.RequiredRole != "" {
		holders, err := d.roles.HoldersOfRole(ctx, identity.OperationalRole(event.RequiredRole))
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, holders...)
	}
	if event.PriorClaimerID != nil {
		recipients = append(recipients, *event.PriorClaimerID)
	}
	return recipients, nil
}

func (d *Dispatcher) reassignRecipients(ctx context.Context, event *automation.TaskReassigned) ([]uuid.UUID, error) {
	recipients, err := d.adminIDs(ctx)
	if err != nil {
		return nil, err
	}
	if event.FromUserID != nil {
		recipients = append(recipients, *event.FromUserID)
	}
	recipients = append(recipients, event.ToUserID)
	return recipients, nil
}

func (d *Dispatcher) taskCompletionRecipients(ctx context.Context, event *automation.TaskCompleted) ([]uuid.UUID, error) {
	if event.RelatedOrderID != nil {
		return d.orderParticipants(ctx, *event.RelatedOrderID)
	}
	return d.adminIDs(ctx)
}

// orderParticipants is everyone assigned across the order's automation
// tasks plus the order creator.
func (d *Dispatcher) orderParticipants(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	order, err := d.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	participants := []uuid.UUID{order.CreatedByUserID}
	tasks, err := d.tasks.FindByOrder(ctx, orderID, automation.LoadOptions{WithAssignments: true})
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.ClaimedByUserID != nil {
			participants = append(participants, *task.ClaimedByUserID)
		}
		for _, assignment := range task.Assignments {
			if assignment.UserID != nil {
				participants = append(participants, *assignment.UserID)
			}
		}
	}
	return participants, nil
}

func (d *Dispatcher) lowStockRecipients(ctx context.Context) ([]uuid.UUID, error) {
	recipients, err := d.adminIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range []identity.OperationalRole{identity.RoleWarehouse, identity.RoleForeman} {
		holders, err := d.roles.HoldersOfRole(ctx, role)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, holders...)
	}
	return recipients, nil
}

func (d *Dispatcher) adminIDs(ctx context.Context) ([]uuid.UUID, error) {
	admins, err := d.users.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(admins))
	for _, admin := range admins {
		ids = append(ids, admin.ID)
	}
	return ids, nil
}

// dedupe removes duplicates, zero ids and the acting user from the set.
func dedupe(recipients []uuid.UUID, actor uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(recipients))
	out := make([]uuid.UUID, 0, len(recipients))
	for _, id := range recipients {
		if id == uuid.Nil || id == actor || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func actorOf(event shared.DomainEvent) uuid.UUID {
	if carrier, ok := event.(shared.ActorCarrier); ok {
		return carrier.Actor().UserID
	}
	return uuid.Nil
}
