package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// OnStepCompleted reacts to a workflow step reaching done: it settles
// delivery assignments, chains the delivery task after the foreman
// hand-over, and evaluates cascade completion of the order root. Each
// reaction is its own atomic unit; a failure in one is logged and does not
// undo the step completion.
func (s *TaskService) OnStepCompleted(ctx context.Context, order *workflow.Order, step *workflow.WorkflowStepTask, actor shared.EventActor) error {
	now := time.Now().UTC()

	if step.Role == string(identity.RoleDelivery) {
		if err := s.settleDeliveryAssignments(ctx, order, now); err != nil {
			s.logger.Error("failed to settle delivery assignments",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
	}

	if step.StepKey == workflow.StepForemanHandover && order.Type != workflow.OrderTypeAgentRetail {
		if err := s.chainDeliveryTask(ctx, order, actor, now); err != nil {
			s.logger.Error("failed to chain delivery task",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
	}

	if err := s.cascadeOrderCompletion(ctx, order.ID, now); err != nil {
		s.logger.Error("cascade evaluation failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// settleDeliveryAssignments marks every delivery assignment on the order's
// tasks done once no required delivery workflow step remains.
func (s *TaskService) settleDeliveryAssignments(ctx context.Context, order *workflow.Order, now time.Time) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		stepTasks, err := repos.StepTaskRepo().FindByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, step := range stepTasks {
			if step.Required && step.Role == string(identity.RoleDelivery) && !step.IsDone() {
				return nil
			}
		}
		assignments, err := repos.AssignmentRepo().FindByOrderAndRole(ctx, order.ID, identity.RoleDelivery)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.IsDone() {
				continue
			}
			a.MarkDone(now)
			if err := repos.AssignmentRepo().Save(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// chainDeliveryTask creates the delivery role task after the foreman
// hand-over, then closes the foreman's role tasks. The partial unique index
// on (related_order_id, required_role) over active statuses makes the
// creation race-safe; losing the race is not an error.
func (s *TaskService) chainDeliveryTask(ctx context.Context, order *workflow.Order, actor shared.EventActor, now time.Time) error {
	active, err := s.tasks.FindActiveByOrderAndRole(ctx, order.ID, identity.RoleDelivery)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		orderID := order.ID
		role := identity.RoleDelivery
		_, err = s.CreateTask(ctx, CreateTaskInput{
			Type:           automation.TaskTypeRole,
			Title:          "Deliver order items",
			CreatorID:      order.CreatedByUserID,
			RelatedOrderID: &orderID,
			RequiredRole:   &role,
		}, actor)
		if err != nil && !errors.Is(err, shared.ErrAlreadyExists) && !errors.Is(err, shared.ErrConflict) {
			return err
		}
	}

	var events []shared.DomainEvent
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		foremanTasks, err := repos.TaskRepo().FindActiveByOrderAndRole(ctx, order.ID, identity.RoleForeman)
		if err != nil {
			return err
		}
		for _, task := range foremanTasks {
			task.Complete(now, actor)
			if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
				return err
			}
			closed := automation.NewTaskEvent(task.ID, nil, automation.TaskEventClosed, shared.JSONMap{"reason": "handoverChained"})
			if err := repos.TaskEventRepo().Append(ctx, closed); err != nil {
				return err
			}
			events = append(events, task.GetDomainEvents()...)
			task.ClearDomainEvents()
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events...)
	return nil
}

// cascadeOrderCompletion completes the order root, the order and every
// remaining non-root task once all of the root's assignments are settled.
func (s *TaskService) cascadeOrderCompletion(ctx context.Context, orderID uuid.UUID, now time.Time) error {
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		root, err := repos.TaskRepo().FindRootByOrder(ctx, orderID, automation.LoadOptions{WithAssignments: true})
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if !root.IsActive() {
			return nil
		}
		for _, a := range root.Assignments {
			if !a.IsDone() {
				return nil
			}
		}

		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Type == workflow.OrderTypeAgentRetail {
			done, err := s.deliverItemsDone(ctx, repos, orderID)
			if err != nil {
				return err
			}
			if !done {
				s.logger.Info("cascade suppressed: retail order awaits item delivery",
					zap.String("order_id", orderID.String()))
				return nil
			}
			s.logger.Info("retail delivery guard passed",
				zap.String("order_id", orderID.String()))
		}

		root.Complete(now, shared.SystemActor)
		if err := repos.TaskRepo().SaveWithLock(ctx, root); err != nil {
			return err
		}
		closed := automation.NewTaskEvent(root.ID, nil, automation.TaskEventClosed, shared.JSONMap{"reason": "allAssignmentsDone"})
		if err := repos.TaskEventRepo().Append(ctx, closed); err != nil {
			return err
		}
		events = append(events, root.GetDomainEvents()...)
		root.ClearDomainEvents()

		if order.SetStatus(workflow.OrderStatusCompleted, shared.SystemActor) {
			if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
				return err
			}
			events = append(events, order.GetDomainEvents()...)
			order.ClearDomainEvents()
		}

		siblings, err := repos.TaskRepo().FindByOrder(ctx, orderID, automation.LoadOptions{WithAssignments: true})
		if err != nil {
			return err
		}
		for _, task := range siblings {
			if task.IsOrderRoot || !task.IsActive() {
				continue
			}
			for _, a := range task.Assignments {
				if a.IsDone() {
					continue
				}
				a.MarkDone(now)
				if err := repos.AssignmentRepo().Save(ctx, a); err != nil {
					return err
				}
			}
			task.Complete(now, shared.SystemActor)
			if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
				return err
			}
			cascaded := automation.NewTaskEvent(task.ID, nil, automation.TaskEventClosed, shared.JSONMap{"reason": "orderCompleted"})
			if err := repos.TaskEventRepo().Append(ctx, cascaded); err != nil {
				return err
			}
			events = append(events, task.GetDomainEvents()...)
			task.ClearDomainEvents()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events...)
	return nil
}

func (s *TaskService) deliverItemsDone(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID) (bool, error) {
	stepTasks, err := repos.StepTaskRepo().FindByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, step := range stepTasks {
		if step.StepKey == workflow.StepDeliverItems {
			return step.Status == workflow.StepStatusDone, nil
		}
	}
	return true, nil
}
