package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/audit"
	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/shared"
)

// Claim atomically assigns an open task to a user. The user's roles are
// queried fresh inside the transaction so grants and revocations apply
// without a token refresh. Admins may take over a claimed or already
// settled task with override.
func (s *TaskService) Claim(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, override bool) (*automation.AutomationTask, error) {
	caller, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	actor := s.actorFor(caller)
	now := time.Now().UTC()

	var (
		task         *automation.AutomationTask
		priorClaimer *uuid.UUID
		overridden   bool
		replayed     bool
	)

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		task, err = repos.TaskRepo().LockByID(ctx, taskID)
		if err != nil {
			return err
		}

		callerRoles, err := repos.RoleRepo().RolesForUser(ctx, userID)
		if err != nil {
			return err
		}
		if task.RequiredRole != nil && !callerRoles.Has(*task.RequiredRole) && !caller.IsSystemAdmin {
			s.audit(ctx, &userID, audit.ActionMissingRequiredRole, task.ID, shared.JSONMap{
				"requiredRole": string(*task.RequiredRole),
				"userRoles":    callerRoles.Strings(),
			})
			return shared.ErrForbidden.WithMessage("claiming this task requires the " + string(*task.RequiredRole) + " role")
		}

		adminOverride := caller.IsSystemAdmin && override

		// Re-claiming one's own task is a no-op, not a conflict.
		if task.Status == automation.TaskStatusClaimed && task.ClaimedByUserID != nil && *task.ClaimedByUserID == userID {
			replayed = true
			return nil
		}
		if task.Status == automation.TaskStatusClaimed && !adminOverride {
			return shared.ErrConflict.WithMessage("task is already claimed")
		}
		if task.Status != automation.TaskStatusOpen && task.Status != automation.TaskStatusPending && task.Status != automation.TaskStatusClaimed && !adminOverride {
			return shared.ErrInvalidState.WithMessage("task is not open for claiming")
		}

		if adminOverride && task.Status != automation.TaskStatusOpen && task.Status != automation.TaskStatusPending {
			priorClaimer = task.ClaimedByUserID
			overridden = true
			claimer := userID
			task.ClaimedByUserID = &claimer
			claimedAt := now
			task.ClaimedAt = &claimedAt
			task.Status = automation.TaskStatusClaimed
			task.CompletedAt = nil
			task.IncrementVersion()
			if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
				return err
			}
			meta := shared.JSONMap{"toUserId": userID.String()}
			if priorClaimer != nil {
				meta["fromUserId"] = priorClaimer.String()
			}
			reassigned := automation.NewTaskEvent(task.ID, &userID, automation.TaskEventReassigned, meta)
			if err := repos.TaskEventRepo().Append(ctx, reassigned); err != nil {
				return err
			}
		} else {
			claimed, err := repos.TaskRepo().ClaimIfUnclaimed(ctx, task.ID, userID, now)
			if err != nil {
				return err
			}
			if !claimed {
				return shared.ErrConflict.WithMessage("task was claimed by someone else")
			}
			claimer := userID
			task.ClaimedByUserID = &claimer
			claimedAt := now
			task.ClaimedAt = &claimedAt
			task.Status = automation.TaskStatusClaimed
			claimedEvent := automation.NewTaskEvent(task.ID, &userID, automation.TaskEventClaimed, nil)
			if err := repos.TaskEventRepo().Append(ctx, claimedEvent); err != nil {
				return err
			}
		}

		return s.bindClaimAssignment(ctx, repos, task, userID, now)
	})
	if err != nil {
		return nil, err
	}

	// Post-commit verification that the claim stuck.
	verified, err := s.tasks.FindByID(ctx, taskID, automation.LoadOptions{})
	if err != nil {
		return nil, err
	}
	if verified.ClaimedByUserID == nil || *verified.ClaimedByUserID != userID {
		return nil, shared.ErrConflict.WithMessage("task claim was overtaken")
	}
	if replayed {
		return verified, nil
	}

	if overridden {
		s.audit(ctx, &userID, audit.ActionClaimOverride, task.ID, shared.JSONMap{
			"priorClaimer": uuidString(priorClaimer),
		})
		s.publish(ctx, automation.NewTaskReassigned(task, priorClaimer, userID, actor))
	}
	s.publish(ctx, automation.NewTaskClaimed(task, userID, priorClaimer, actor))

	s.logger.Info("task claimed",
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("override", overridden))

	return verified, nil
}

// bindClaimAssignment makes the claim visible in the claimer's assignment
// list: bind the role placeholder when one exists, create an in-progress
// assignment otherwise.
func (s *TaskService) bindClaimAssignment(ctx context.Context, repos TransactionalRepositories, task *automation.AutomationTask, userID uuid.UUID, now time.Time) error {
	existing, err := repos.AssignmentRepo().FindByTaskAndUser(ctx, task.ID, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	if task.RequiredRole != nil {
		all, err := repos.AssignmentRepo().FindByTask(ctx, task.ID)
		if err != nil {
			return err
		}
		for _, assignment := range all {
			if assignment.UserID == nil && assignment.RoleHint == *task.RequiredRole {
				assignment.BindUser(userID)
				return repos.AssignmentRepo().Save(ctx, assignment)
			}
		}
		assignment := automation.NewUserAssignment(task.ID, userID, *task.RequiredRole, now)
		return repos.AssignmentRepo().Create(ctx, assignment)
	}

	assignment := automation.NewUserAssignment(task.ID, userID, "", now)
	return repos.AssignmentRepo().Create(ctx, assignment)
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
