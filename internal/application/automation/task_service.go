package automation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/audit"
	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// StepEngine is the slice of the order engine the automation engine drives.
type StepEngine interface {
	CompleteStep(ctx context.Context, stepTaskID uuid.UUID, userID uuid.UUID, actor shared.EventActor) (*workflow.WorkflowStepTask, error)
}

// TaskService is the automation task engine. It creates role-scoped tasks
// from order triggers, coordinates claiming, mediates cross-role
// acknowledgement and drives cascade completion up to the order.
type TaskService struct {
	scope          TransactionScope
	tasks          automation.TaskRepository
	assignments    automation.AssignmentRepository
	taskEvents     automation.TaskEventRepository
	users          identity.UserRepository
	roles          identity.RoleRepository
	engine         StepEngine
	auditor        audit.Repository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewTaskService creates a TaskService
func NewTaskService(
	scope TransactionScope,
	tasks automation.TaskRepository,
	assignments automation.AssignmentRepository,
	taskEvents automation.TaskEventRepository,
	users identity.UserRepository,
	roles identity.RoleRepository,
	auditor audit.Repository,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		scope:       scope,
		tasks:       tasks,
		assignments: assignments,
		taskEvents:  taskEvents,
		users:       users,
		roles:       roles,
		auditor:     auditor,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *TaskService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetStepEngine wires the order engine used for workflow advancement
func (s *TaskService) SetStepEngine(engine StepEngine) {
	s.engine = engine
}

// CreateTaskInput carries task creation parameters.
type CreateTaskInput struct {
	Type           automation.TaskType
	Title          string
	CreatorID      uuid.UUID
	RelatedOrderID *uuid.UUID
	RequiredRole   *identity.OperationalRole
	IsOrderRoot    bool
	Priority       automation.TaskPriority
	Metadata       shared.JSONMap
}

// CreateTask persists an automation task with its audit row and placeholder
// assignments. Tasks carrying a required role open for claiming immediately.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput, actor shared.EventActor) (*automation.AutomationTask, error) {
	if input.Title == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "task title is required")
	}

	task := automation.NewTask(input.Type, input.Title, input.CreatorID)
	task.RelatedOrderID = input.RelatedOrderID
	task.RequiredRole = input.RequiredRole
	task.IsOrderRoot = input.IsOrderRoot
	task.Metadata = input.Metadata
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	opened := false
	if input.RequiredRole != nil {
		task.Status = automation.TaskStatusOpen
		opened = true
	}

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.TaskRepo().Create(ctx, task); err != nil {
			return err
		}
		creator := input.CreatorID
		created := automation.NewTaskEvent(task.ID, &creator, automation.TaskEventCreated, shared.JSONMap{
			"title": task.Title,
			"type":  string(task.Type),
		})
		if err := repos.TaskEventRepo().Append(ctx, created); err != nil {
			return err
		}
		return s.createTemplateAssignments(ctx, repos, task)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, automation.NewTaskCreated(task, actor))
	if opened {
		s.publish(ctx, automation.NewTaskOpened(task, actor))
	}

	s.logger.Info("automation task created",
		zap.String("task_id", task.ID.String()),
		zap.String("type", string(task.Type)),
		zap.Bool("order_root", task.IsOrderRoot))

	return task, nil
}

// createTemplateAssignments seeds placeholder assignments. The order root
// carries one placeholder per participating role from the template; a role
// task carries a single placeholder for its own role.
func (s *TaskService) createTemplateAssignments(ctx context.Context, repos TransactionalRepositories, task *automation.AutomationTask) error {
	now := task.CreatedAt
	if task.IsOrderRoot && task.RelatedOrderID != nil {
		order, err := repos.OrderRepo().FindByID(ctx, *task.RelatedOrderID)
		if err != nil {
			return err
		}
		template, ok := automation.TemplateFor(order.Type)
		if !ok {
			return nil
		}
		for _, role := range template.AssignmentRoles {
			placeholder := automation.NewPlaceholderAssignment(task.ID, role, now)
			if err := repos.AssignmentRepo().Create(ctx, placeholder); err != nil {
				return err
			}
		}
		return nil
	}
	if task.RequiredRole != nil {
		placeholder := automation.NewPlaceholderAssignment(task.ID, *task.RequiredRole, now)
		return repos.AssignmentRepo().Create(ctx, placeholder)
	}
	return nil
}

// GetTask loads a task with its assignments and audit trail. The same
// visibility rules as ListTasks apply, so a caller cannot read by id
// what the listing would hide.
func (s *TaskService) GetTask(ctx context.Context, taskID uuid.UUID, callerID uuid.UUID) (*automation.AutomationTask, error) {
	task, err := s.tasks.FindByID(ctx, taskID, automation.LoadOptions{WithAssignments: true, WithEvents: true})
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTaskView(ctx, task, callerID); err != nil {
		return nil, err
	}
	return task, nil
}

// TaskEvents returns the append-only audit trail of a task
func (s *TaskService) TaskEvents(ctx context.Context, taskID uuid.UUID, callerID uuid.UUID) ([]*automation.TaskEvent, error) {
	task, err := s.tasks.FindByID(ctx, taskID, automation.LoadOptions{WithAssignments: true})
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTaskView(ctx, task, callerID); err != nil {
		return nil, err
	}
	return s.taskEvents.FindByTask(ctx, taskID)
}

// authorizeTaskView enforces the listing predicate on a single task:
// admins see everything, others see tasks they created, claimed or are
// assigned to, and completed tasks matching one of their roles.
func (s *TaskService) authorizeTaskView(ctx context.Context, task *automation.AutomationTask, callerID uuid.UUID) error {
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.IsSystemAdmin {
		return nil
	}
	if task.CreatedByUserID == callerID {
		return nil
	}
	if task.ClaimedByUserID != nil && *task.ClaimedByUserID == callerID {
		return nil
	}
	for _, assignment := range task.Assignments {
		if assignment.UserID != nil && *assignment.UserID == callerID {
			return nil
		}
	}
	if task.Status == automation.TaskStatusCompleted && task.RequiredRole != nil {
		callerRoles, err := s.roles.RolesForUser(ctx, callerID)
		if err != nil {
			return err
		}
		if callerRoles.Has(*task.RequiredRole) {
			return nil
		}
	}
	return shared.ErrForbidden.WithMessage("task is not visible to the caller")
}

// ListTasks returns tasks visible to the caller. Admins see everything;
// other users see tasks they created, tasks they are assigned to, and
// completed tasks matching one of their roles.
func (s *TaskService) ListTasks(ctx context.Context, filter automation.TaskFilter, callerID uuid.UUID) (shared.Paginated[*automation.AutomationTask], error) {
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return shared.Paginated[*automation.AutomationTask]{}, err
	}
	if !caller.IsSystemAdmin {
		callerRoles, err := s.roles.RolesForUser(ctx, callerID)
		if err != nil {
			return shared.Paginated[*automation.AutomationTask]{}, err
		}
		filter.Visibility = &automation.TaskVisibility{UserID: callerID, Roles: callerRoles}
	}
	return s.tasks.List(ctx, filter)
}

// AvailableTasksForRole returns the claimable queue for a role: open,
// unclaimed tasks without operational assignments yet.
func (s *TaskService) AvailableTasksForRole(ctx context.Context, role identity.OperationalRole) ([]*automation.AutomationTask, error) {
	return s.tasks.AvailableForRole(ctx, role)
}

// MyAssignments returns the caller's assignments
func (s *TaskService) MyAssignments(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*automation.TaskAssignment], error) {
	return s.assignments.FindByUser(ctx, userID, filter)
}

// Cancel soft-deletes a task by transitioning it to cancelled
func (s *TaskService) Cancel(ctx context.Context, taskID uuid.UUID, callerID uuid.UUID) (*automation.AutomationTask, error) {
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	var task *automation.AutomationTask
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		task, err = repos.TaskRepo().LockByID(ctx, taskID)
		if err != nil {
			return err
		}
		if !caller.IsSystemAdmin && task.CreatedByUserID != callerID {
			return shared.ErrForbidden.WithMessage("only the creator or an admin can cancel a task")
		}
		if !task.IsActive() {
			return shared.ErrInvalidState.WithMessage("task is not active")
		}
		task.Cancel(s.actorFor(caller))
		if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
			return err
		}
		cancelled := automation.NewTaskEvent(task.ID, &callerID, automation.TaskEventCancelled, nil)
		return repos.TaskEventRepo().Append(ctx, cancelled)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ReassignInput carries admin reassignment parameters. Either the task
// claimer or one assignment changes.
type ReassignInput struct {
	TaskID       uuid.UUID
	AssignmentID *uuid.UUID
	ToUserID     uuid.UUID
	RoleHint     *identity.OperationalRole
}

// Reassign moves a claimed task or an assignment to another user. Admin only.
func (s *TaskService) Reassign(ctx context.Context, input ReassignInput, callerID uuid.UUID) (*automation.AutomationTask, error) {
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsSystemAdmin {
		return nil, shared.ErrForbidden.WithMessage("only admins can reassign tasks")
	}
	if _, err := s.users.FindByID(ctx, input.ToUserID); err != nil {
		return nil, err
	}

	var (
		task *automation.AutomationTask
		from *uuid.UUID
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		task, err = repos.TaskRepo().LockByID(ctx, input.TaskID)
		if err != nil {
			return err
		}
		if input.AssignmentID != nil {
			assignment, err := repos.AssignmentRepo().FindByID(ctx, *input.AssignmentID)
			if err != nil {
				return err
			}
			if assignment.AutomationTaskID != task.ID {
				return shared.ErrInvalidInput.WithMessage("assignment does not belong to the task")
			}
			from = assignment.UserID
			assignment.BindUser(input.ToUserID)
			if input.RoleHint != nil {
				assignment.RoleHint = *input.RoleHint
			}
			if err := repos.AssignmentRepo().Save(ctx, assignment); err != nil {
				return err
			}
		} else {
			if task.ClaimedByUserID == nil {
				return shared.ErrInvalidState.WithMessage("task is not claimed")
			}
			from = task.ClaimedByUserID
			to := input.ToUserID
			task.ClaimedByUserID = &to
			task.IncrementVersion()
			if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
				return err
			}
		}
		meta := shared.JSONMap{"toUserId": input.ToUserID.String()}
		if from != nil {
			meta["fromUserId"] = from.String()
		}
		reassigned := automation.NewTaskEvent(task.ID, &callerID, automation.TaskEventReassigned, meta)
		return repos.TaskEventRepo().Append(ctx, reassigned)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &callerID, audit.ActionReassignment, task.ID, shared.JSONMap{
		"toUserId": input.ToUserID.String(),
	})
	s.publish(ctx, automation.NewTaskReassigned(task, from, input.ToUserID, s.actorFor(caller)))

	return task, nil
}

func (s *TaskService) actorFor(user *identity.User) shared.EventActor {
	return shared.EventActor{UserID: user.ID, Username: user.Username}
}

func (s *TaskService) audit(ctx context.Context, actor *uuid.UUID, action string, taskID uuid.UUID, detail shared.JSONMap) {
	record := audit.NewRecord(actor, action, automation.AggregateTask, taskID, detail)
	if err := s.auditor.Append(ctx, record); err != nil {
		s.logger.Warn("failed to append audit record",
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *TaskService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish automation events", zap.Error(err))
	}
}
