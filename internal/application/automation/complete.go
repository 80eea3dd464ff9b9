package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/audit"
	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// CompleteAssignmentInput carries assignment completion parameters.
type CompleteAssignmentInput struct {
	TaskID       uuid.UUID
	UserID       uuid.UUID
	Notes        string
	AssignmentID *uuid.UUID
}

// CompleteAssignment is the crux of the engine: it gates the caller against
// the order's currently active workflow step, records cross-role
// acknowledgements, transitions the caller's assignment, and then drives
// the workflow step engine. Step advancement runs through its own atomic
// guards; a failure there leaves the assignment in its updated state rather
// than unrolling it.
func (s *TaskService) CompleteAssignment(ctx context.Context, input CompleteAssignmentInput) (*automation.TaskAssignment, error) {
	caller, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	actor := s.actorFor(caller)
	now := time.Now().UTC()

	var (
		assignment  *automation.TaskAssignment
		target      *workflow.WorkflowStepTask
		alreadyDone bool
		forceClosed bool
	)

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		task, err := repos.TaskRepo().LockByID(ctx, input.TaskID)
		if err != nil {
			return err
		}

		callerRoles, err := repos.RoleRepo().RolesForUser(ctx, input.UserID)
		if err != nil {
			return err
		}

		assignment, err = s.resolveAssignment(ctx, repos, task, caller, callerRoles, input.AssignmentID)
		if err != nil {
			return err
		}
		if assignment == nil {
			// Admin on a task with no assignments at all: close the task
			// itself.
			if caller.IsSystemAdmin {
				forceClosed = true
				return s.forceCompleteTask(ctx, repos, task, input.UserID, now, actor)
			}
			return shared.ErrNotFound.WithMessage("no assignment found for this task")
		}
		if assignment.IsDone() {
			alreadyDone = true
			return nil
		}

		if task.RelatedOrderID != nil && !caller.IsSystemAdmin {
			target, err = s.gateAgainstWorkflow(ctx, repos, *task.RelatedOrderID, assignment.RoleHint)
			if err != nil {
				return err
			}
		}

		if target != nil {
			if err := s.acknowledgeAcrossRoles(ctx, repos, *task.RelatedOrderID, target, now); err != nil {
				return err
			}
		}

		return s.transitionOwnAssignment(ctx, repos, task, assignment, caller, target, input.Notes, now)
	})
	if err != nil {
		return nil, err
	}
	if alreadyDone || forceClosed {
		return assignment, nil
	}

	if target != nil && s.engine != nil {
		if _, err := s.engine.CompleteStep(ctx, target.ID, input.UserID, actor); err != nil {
			s.logger.Error("workflow step completion failed after assignment update",
				zap.String("task_id", input.TaskID.String()),
				zap.String("step_key", target.StepKey),
				zap.Error(err))
			return nil, err
		}
	}

	return assignment, nil
}

// CompleteWorkflowStep drives the related order's active workflow step from
// an automation task, without transitioning the caller's assignment. The
// caller is gated the same way as assignment completion: the active step
// must belong to a role the caller acts under on this task.
func (s *TaskService) CompleteWorkflowStep(ctx context.Context, taskID uuid.UUID, userID uuid.UUID) (*workflow.WorkflowStepTask, error) {
	caller, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	actor := s.actorFor(caller)

	var target *workflow.WorkflowStepTask
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		task, err := repos.TaskRepo().LockByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.RelatedOrderID == nil {
			return shared.ErrInvalidState.WithMessage("task is not linked to an order")
		}

		if caller.IsSystemAdmin {
			target, err = s.activeStepOf(ctx, repos, *task.RelatedOrderID)
			return err
		}

		role, err := s.workflowRoleFor(ctx, repos, task, caller)
		if err != nil {
			return err
		}
		target, err = s.gateAgainstWorkflow(ctx, repos, *task.RelatedOrderID, role)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.engine == nil {
		return target, nil
	}
	return s.engine.CompleteStep(ctx, target.ID, userID, actor)
}

// workflowRoleFor resolves the role the caller acts under on a task: the
// task's required role when the caller holds it, otherwise the caller's own
// assignment role hint.
func (s *TaskService) workflowRoleFor(ctx context.Context, repos TransactionalRepositories, task *automation.AutomationTask, caller *identity.User) (identity.OperationalRole, error) {
	callerRoles, err := repos.RoleRepo().RolesForUser(ctx, caller.ID)
	if err != nil {
		return "", err
	}
	if task.RequiredRole != nil && callerRoles.Has(*task.RequiredRole) {
		return *task.RequiredRole, nil
	}
	assignments, err := repos.AssignmentRepo().FindByTask(ctx, task.ID)
	if err != nil {
		return "", err
	}
	for _, a := range assignments {
		if a.UserID != nil && *a.UserID == caller.ID {
			return a.RoleHint, nil
		}
	}
	for _, a := range assignments {
		if a.UserID == nil && callerRoles.Has(a.RoleHint) {
			return a.RoleHint, nil
		}
	}
	return "", shared.ErrForbidden.WithMessage("caller has no role on this task")
}

func (s *TaskService) activeStepOf(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID) (*workflow.WorkflowStepTask, error) {
	stepTasks, err := repos.StepTaskRepo().FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, step := range stepTasks {
		if step.Status == workflow.StepStatusActive {
			return step, nil
		}
	}
	return nil, shared.ErrInvalidState.WithMessage("order has no active workflow step")
}

// resolveAssignment picks the assignment the completion applies to: the
// explicit one, the first non-done one for admins, or the caller's own
// (bound or role placeholder). A nil result with nil error means the task
// has no assignments the caller can act on.
func (s *TaskService) resolveAssignment(
	ctx context.Context,
	repos TransactionalRepositories,
	task *automation.AutomationTask,
	caller *identity.User,
	callerRoles identity.RoleSet,
	assignmentID *uuid.UUID,
) (*automation.TaskAssignment, error) {
	if assignmentID != nil {
		assignment, err := repos.AssignmentRepo().FindByID(ctx, *assignmentID)
		if err != nil {
			return nil, err
		}
		if assignment.AutomationTaskID != task.ID {
			return nil, shared.ErrInvalidInput.WithMessage("assignment does not belong to the task")
		}
		return assignment, nil
	}

	all, err := repos.AssignmentRepo().FindByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if caller.IsSystemAdmin {
		for _, a := range all {
			if !a.IsDone() {
				return a, nil
			}
		}
		// Force-closing is reserved for tasks that never had assignments.
		if len(all) > 0 {
			return nil, shared.ErrInvalidState.WithMessage("task assignments are already settled")
		}
		return nil, nil
	}

	// Exact binding first, then an unbound placeholder for one of the
	// caller's current roles.
	for _, a := range all {
		if a.UserID != nil && *a.UserID == caller.ID && !a.IsDone() {
			return a, nil
		}
	}
	for _, a := range all {
		if a.UserID == nil && callerRoles.Has(a.RoleHint) && !a.IsDone() {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound.WithMessage("no assignment found for this user on the task")
}

// gateAgainstWorkflow locates the currently active workflow step the
// caller's role is allowed to drive. The error names the active step so a
// caller acting out of order can diagnose the rejection.
func (s *TaskService) gateAgainstWorkflow(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID, role identity.OperationalRole) (*workflow.WorkflowStepTask, error) {
	active, err := s.activeStepOf(ctx, repos, orderID)
	if err != nil {
		return nil, err
	}
	if !workflow.RoleAllowsStep(role, active.StepKey) {
		return nil, shared.ErrForbidden.WithMessage("currently active step is " + active.StepKey + ", which the " + string(role) + " role cannot complete")
	}
	return active, nil
}

// acknowledgeAcrossRoles records the hand-off acknowledgements: delivery
// confirming receipt closes the foreman assignment, the requester
// confirming delivery closes the delivery assignment. Either only happens
// once the acknowledged role has no required steps left.
func (s *TaskService) acknowledgeAcrossRoles(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID, target *workflow.WorkflowStepTask, now time.Time) error {
	var acknowledged identity.OperationalRole
	switch target.StepKey {
	case workflow.StepDeliveryReceived:
		acknowledged = identity.RoleForeman
	case workflow.StepConfirmReceived:
		acknowledged = identity.RoleDelivery
	default:
		return nil
	}

	remaining, err := s.remainingRequiredSteps(ctx, repos, orderID, acknowledged, target.ID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	assignments, err := repos.AssignmentRepo().FindByOrderAndRole(ctx, orderID, acknowledged)
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
}

// transitionOwnAssignment applies the caller's own assignment rule: done on
// the final acknowledgement or when the role has no required steps left
// after this completion, notes-only otherwise.
func (s *TaskService) transitionOwnAssignment(
	ctx context.Context,
	repos TransactionalRepositories,
	task *automation.AutomationTask,
	assignment *automation.TaskAssignment,
	caller *identity.User,
	target *workflow.WorkflowStepTask,
	notes string,
	now time.Time,
) error {
	if assignment.UserID == nil {
		assignment.BindUser(caller.ID)
	}
	if notes != "" {
		assignment.Notes = notes
	}

	markDone := caller.IsSystemAdmin
	if !markDone && target != nil {
		if target.StepKey == workflow.StepConfirmReceived {
			markDone = true
		} else if task.RelatedOrderID != nil {
			remaining, err := s.remainingRequiredSteps(ctx, repos, *task.RelatedOrderID, assignment.RoleHint, target.ID)
			if err != nil {
				return err
			}
			markDone = remaining == 0
		}
	}
	if markDone {
		assignment.MarkDone(now)
	} else if assignment.Status == automation.AssignmentStatusPending {
		assignment.Status = automation.AssignmentStatusInProgress
	}
	if err := repos.AssignmentRepo().Save(ctx, assignment); err != nil {
		return err
	}

	meta := shared.JSONMap{"assignmentId": assignment.ID.String()}
	if target != nil {
		meta["stepKey"] = target.StepKey
	}
	if notes != "" {
		meta["notes"] = notes
	}
	userID := caller.ID
	stepCompleted := automation.NewTaskEvent(task.ID, &userID, automation.TaskEventStepCompleted, meta)
	return repos.TaskEventRepo().Append(ctx, stepCompleted)
}

// remainingRequiredSteps counts the role's required workflow steps that are
// neither done nor the one being completed right now.
func (s *TaskService) remainingRequiredSteps(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID, role identity.OperationalRole, completingStepID uuid.UUID) (int, error) {
	stepTasks, err := repos.StepTaskRepo().FindByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	remaining := 0
	for _, step := range stepTasks {
		if !step.Required || step.IsDone() || step.ID == completingStepID {
			continue
		}
		if step.Role == string(role) {
			remaining++
		}
	}
	return remaining, nil
}

// forceCompleteTask closes a task that has no assignments. Admin only.
func (s *TaskService) forceCompleteTask(ctx context.Context, repos TransactionalRepositories, task *automation.AutomationTask, adminID uuid.UUID, now time.Time, actor shared.EventActor) error {
	if !task.IsActive() {
		return shared.ErrInvalidState.WithMessage("task is not active")
	}
	task.Complete(now, actor)
	if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
		return err
	}
	closed := automation.NewTaskEvent(task.ID, &adminID, automation.TaskEventClosed, shared.JSONMap{"forced": true})
	if err := repos.TaskEventRepo().Append(ctx, closed); err != nil {
		return err
	}
	s.audit(ctx, &adminID, audit.ActionAdminForceComplete, task.ID, nil)
	for _, event := range task.GetDomainEvents() {
		s.publish(ctx, event)
	}
	task.ClearDomainEvents()
	return nil
}
