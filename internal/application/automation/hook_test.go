package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

func orderRootTask(orderID uuid.UUID, creator uuid.UUID) *automation.AutomationTask {
	root := automation.NewTask(automation.TaskTypeOrder, "Fulfil agent restock order", creator)
	root.IsOrderRoot = true
	root.RelatedOrderID = &orderID
	return root
}

func doneAssignment(taskID uuid.UUID, role identity.OperationalRole) *automation.TaskAssignment {
	a := automation.NewUserAssignment(taskID, uuid.New(), role, time.Now().UTC())
	a.MarkDone(time.Now().UTC())
	return a
}

func TestOnStepCompletedChainsDeliveryTask(t *testing.T) {
	f := newTaskServiceFixture()

	order := workflow.NewOrder(workflow.OrderTypeAgentRestock, uuid.New(), nil)
	steps := buildAgentRestockSteps(order.ID)
	handover := steps[1] // foremanHandover
	actor := shared.EventActor{UserID: uuid.New()}

	foremanTask := openRoleTask(identity.RoleForeman)
	foremanTask.RelatedOrderID = &order.ID

	root := orderRootTask(order.ID, order.CreatedByUserID)
	root.Assignments = []*automation.TaskAssignment{
		automation.NewPlaceholderAssignment(root.ID, identity.RoleDelivery, time.Now().UTC()),
	}

	var chained *automation.AutomationTask
	f.tasks.On("FindActiveByOrderAndRole", mock.Anything, order.ID, identity.RoleDelivery).Return([]*automation.AutomationTask{}, nil)
	f.tasks.On("Create", mock.Anything, mock.AnythingOfType("*automation.AutomationTask")).
		Run(func(args mock.Arguments) {
			chained = args.Get(1).(*automation.AutomationTask)
		}).Return(nil)
	f.assignments.On("Create", mock.Anything, mock.AnythingOfType("*automation.TaskAssignment")).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.tasks.On("FindActiveByOrderAndRole", mock.Anything, order.ID, identity.RoleForeman).Return([]*automation.AutomationTask{foremanTask}, nil)
	f.tasks.On("SaveWithLock", mock.Anything, foremanTask).Return(nil)
	// Root still has an unsettled placeholder, so the cascade is a no-op.
	f.tasks.On("FindRootByOrder", mock.Anything, order.ID, automation.LoadOptions{WithAssignments: true}).Return(root, nil)

	require.NoError(t, f.svc.OnStepCompleted(context.Background(), order, handover, actor))

	require.NotNil(t, chained)
	assert.Equal(t, automation.TaskTypeRole, chained.Type)
	require.NotNil(t, chained.RequiredRole)
	assert.Equal(t, identity.RoleDelivery, *chained.RequiredRole)
	assert.Equal(t, automation.TaskStatusCompleted, foremanTask.Status)

	f.tasks.AssertNotCalled(t, "SaveWithLock", mock.Anything, root)
}

func TestOnStepCompletedCascadesOrderCompletion(t *testing.T) {
	f := newTaskServiceFixture()

	order := workflow.NewOrder(workflow.OrderTypeAgentRestock, uuid.New(), nil)
	order.Status = workflow.OrderStatusAwaitingConfirmation
	steps := buildAgentRestockSteps(order.ID)
	for _, step := range steps {
		step.Status = workflow.StepStatusDone
	}
	confirm := steps[4] // confirmReceived
	actor := shared.EventActor{UserID: uuid.New()}

	root := orderRootTask(order.ID, order.CreatedByUserID)
	root.Assignments = []*automation.TaskAssignment{
		doneAssignment(root.ID, identity.RoleForeman),
		doneAssignment(root.ID, identity.RoleDelivery),
		doneAssignment(root.ID, identity.RoleRequester),
	}

	straggler := openRoleTask(identity.RoleDelivery)
	straggler.RelatedOrderID = &order.ID
	pending := automation.NewPlaceholderAssignment(straggler.ID, identity.RoleDelivery, time.Now().UTC())
	straggler.Assignments = []*automation.TaskAssignment{pending}

	f.tasks.On("FindRootByOrder", mock.Anything, order.ID, automation.LoadOptions{WithAssignments: true}).Return(root, nil)
	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.tasks.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*automation.AutomationTask")).Return(nil)
	f.taskEvents.On("Append", mock.Anything, mock.AnythingOfType("*automation.TaskEvent")).Return(nil)
	f.orders.On("SaveWithLock", mock.Anything, order).Return(nil)
	f.tasks.On("FindByOrder", mock.Anything, order.ID, automation.LoadOptions{WithAssignments: true}).Return([]*automation.AutomationTask{root, straggler}, nil)
	f.assignments.On("Save", mock.Anything, pending).Return(nil)

	require.NoError(t, f.svc.OnStepCompleted(context.Background(), order, confirm, actor))

	assert.Equal(t, automation.TaskStatusCompleted, root.Status)
	assert.Equal(t, automation.TaskStatusCompleted, straggler.Status)
	assert.Equal(t, automation.AssignmentStatusDone, pending.Status)
	assert.Equal(t, workflow.OrderStatusCompleted, order.Status)

	var sawRootCompleted, sawOrderCompleted bool
	for _, event := range f.publisher.events {
		switch e := event.(type) {
		case *automation.TaskCompleted:
			if e.AggregateID() == root.ID {
				sawRootCompleted = true
			}
		case *workflow.OrderCompleted:
			sawOrderCompleted = true
		}
	}
	assert.True(t, sawRootCompleted)
	assert.True(t, sawOrderCompleted)
}

func TestOnStepCompletedRetailGuardSuppressesCascade(t *testing.T) {
	f := newTaskServiceFixture()

	order := workflow.NewOrder(workflow.OrderTypeAgentRetail, uuid.New(), nil)
	retailOrder := &workflow.Order{Type: workflow.OrderTypeAgentRetail}
	retailOrder.ID = order.ID
	steps := workflow.BuildStepTasks(retailOrder, time.Now().UTC())
	accept := steps[0] // acceptDelivery done, deliverItems still pending
	accept.Status = workflow.StepStatusDone
	actor := shared.EventActor{UserID: uuid.New()}

	root := orderRootTask(order.ID, order.CreatedByUserID)
	root.Assignments = []*automation.TaskAssignment{
		doneAssignment(root.ID, identity.RoleDelivery),
	}

	f.steps.On("FindByOrder", mock.Anything, order.ID).Return(steps, nil)
	f.assignments.On("FindByOrderAndRole", mock.Anything, order.ID, identity.RoleDelivery).Return([]*automation.TaskAssignment{}, nil)
	f.tasks.On("FindRootByOrder", mock.Anything, order.ID, automation.LoadOptions{WithAssignments: true}).Return(root, nil)
	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

	require.NoError(t, f.svc.OnStepCompleted(context.Background(), order, accept, actor))

	assert.NotEqual(t, automation.TaskStatusCompleted, root.Status)
	f.tasks.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.events)
}
