package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	automationapp "github.com/opsflow/backend/internal/application/automation"
	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// TaskHandler handles automation task endpoints
type TaskHandler struct {
	BaseHandler
	tasks *automationapp.TaskService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks *automationapp.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// RegisterRoutes registers task routes
func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/automation")
	{
		group.GET("/available-tasks", h.Available)
		tasks := group.Group("/tasks")
		{
			tasks.POST("", h.Create)
			tasks.GET("", h.List)
			tasks.GET("/:id", h.GetByID)
			tasks.GET("/:id/events", h.Events)
			tasks.POST("/:id/claim", h.Claim)
			tasks.POST("/:id/complete", h.Complete)
			tasks.POST("/:id/workflow-step/complete", h.CompleteWorkflowStep)
			tasks.POST("/:id/reassign", h.Reassign)
			tasks.POST("/:id/cancel", h.Cancel)
		}
	}
	assignments := rg.Group("/assignments")
	{
		assignments.GET("/my", h.MyAssignments)
	}
}

// CreateTaskRequest represents a request to create an automation task
type CreateTaskRequest struct {
	Type           string                 `json:"type" binding:"required,oneof=order role restock"`
	Title          string                 `json:"title" binding:"required,min=1,max=255"`
	RelatedOrderID *string                `json:"related_order_id" binding:"omitempty,uuid"`
	RequiredRole   *string                `json:"required_role" binding:"omitempty,oneof=foreman delivery requester warehouse"`
	Priority       string                 `json:"priority" binding:"omitempty,oneof=normal high"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// ClaimTaskRequest represents a claim request. Override is honoured for
// admins only and bypasses the role check.
type ClaimTaskRequest struct {
	Override bool `json:"override"`
}

// CompleteTaskRequest represents a task completion request
type CompleteTaskRequest struct {
	Notes        string  `json:"notes" binding:"omitempty,max=2000"`
	AssignmentID *string `json:"assignment_id" binding:"omitempty,uuid"`
}

// ReassignTaskRequest represents an admin reassignment request
type ReassignTaskRequest struct {
	ToUserID     string  `json:"to_user_id" binding:"required,uuid"`
	AssignmentID *string `json:"assignment_id" binding:"omitempty,uuid"`
	RoleHint     *string `json:"role_hint" binding:"omitempty,oneof=foreman delivery requester warehouse"`
}

// ListTasksRequest represents task list query parameters
type ListTasksRequest struct {
	dto.ListRequest
	Status    string `form:"status" binding:"omitempty,oneof=open claimed inProgress pending completed cancelled"`
	Type      string `form:"type" binding:"omitempty,oneof=order role restock"`
	CreatorID string `form:"creator_id" binding:"omitempty,uuid"`
}

// TaskResponse represents an automation task in API responses
type TaskResponse struct {
	ID              string               `json:"id"`
	Type            string               `json:"type"`
	Status          string               `json:"status"`
	Priority        string               `json:"priority"`
	Title           string               `json:"title"`
	CreatedByUserID string               `json:"created_by_user_id"`
	RelatedOrderID  *string              `json:"related_order_id,omitempty"`
	RequiredRole    *string              `json:"required_role,omitempty"`
	ClaimedByUserID *string              `json:"claimed_by_user_id,omitempty"`
	ClaimedAt       *time.Time           `json:"claimed_at,omitempty"`
	IsOrderRoot     bool                 `json:"is_order_root"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	Metadata        shared.JSONMap       `json:"metadata,omitempty"`
	Assignments     []AssignmentResponse `json:"assignments,omitempty"`
	Events          []TaskEventResponse  `json:"events,omitempty"`
	Version         int                  `json:"version"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// AssignmentResponse represents a task assignment in API responses
type AssignmentResponse struct {
	ID               string     `json:"id"`
	AutomationTaskID string     `json:"automation_task_id"`
	UserID           *string    `json:"user_id,omitempty"`
	RoleHint         string     `json:"role_hint"`
	Status           string     `json:"status"`
	Notes            string     `json:"notes,omitempty"`
	AssignedAt       time.Time  `json:"assigned_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// TaskEventResponse represents an audit trail entry in API responses
type TaskEventResponse struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	EventType string         `json:"event_type"`
	Metadata  shared.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Create godoc
// @Summary      Create an automation task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        request body CreateTaskRequest true "Task creation request"
// @Success      201 {object} dto.Response{data=TaskResponse}
// @Security     BearerAuth
// @Router       /automation/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	relatedOrderID, err := parseUUIDPtr(req.RelatedOrderID)
	if err != nil {
		h.BadRequest(c, "Invalid related order ID format")
		return
	}

	input := automationapp.CreateTaskInput{
		Type:           automation.TaskType(req.Type),
		Title:          req.Title,
		CreatorID:      actor.UserID,
		RelatedOrderID: relatedOrderID,
		Priority:       automation.TaskPriority(req.Priority),
		Metadata:       shared.JSONMap(req.Metadata),
	}
	if req.RequiredRole != nil {
		role, err := identity.ParseRole(*req.RequiredRole)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		input.RequiredRole = &role
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), input, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toTaskResponse(task))
}

// List godoc
// @Summary      List tasks visible to the caller
// @Tags         tasks
// @Produce      json
// @Param        status query string false "Task status"
// @Param        type query string false "Task type"
// @Success      200 {object} dto.Response{data=[]TaskResponse}
// @Security     BearerAuth
// @Router       /automation/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := automation.TaskFilter{Filter: toSharedFilter(req.ListRequest)}
	if req.Status != "" {
		status := automation.TaskStatus(req.Status)
		filter.Status = &status
	}
	if req.Type != "" {
		taskType := automation.TaskType(req.Type)
		filter.Type = &taskType
	}
	if req.CreatorID != "" {
		creatorID, err := uuid.Parse(req.CreatorID)
		if err != nil {
			h.BadRequest(c, "Invalid creator ID format")
			return
		}
		filter.CreatorID = &creatorID
	}

	page, err := h.tasks.ListTasks(c.Request.Context(), filter, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TaskResponse, 0, len(page.Items))
	for _, task := range page.Items {
		items = append(items, toTaskResponse(task))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Available godoc
// @Summary      List the claimable queue for a role
// @Tags         tasks
// @Produce      json
// @Param        role query string true "Operational role"
// @Success      200 {object} dto.Response{data=[]TaskResponse}
// @Security     BearerAuth
// @Router       /automation/available-tasks [get]
func (h *TaskHandler) Available(c *gin.Context) {
	role, err := identity.ParseRole(c.Query("role"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tasks, err := h.tasks.AvailableTasksForRole(c.Request.Context(), role)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, toTaskResponse(task))
	}
	h.Success(c, items)
}

// GetByID godoc
// @Summary      Get task by ID
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} dto.Response{data=TaskResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	task, err := h.tasks.GetTask(c.Request.Context(), taskID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTaskResponse(task))
}

// Events godoc
// @Summary      Get the audit trail of a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]TaskEventResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id}/events [get]
func (h *TaskHandler) Events(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	events, err := h.tasks.TaskEvents(c.Request.Context(), taskID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TaskEventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, toTaskEventResponse(event))
	}
	h.Success(c, items)
}

// Claim godoc
// @Summary      Claim an open task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Param        request body ClaimTaskRequest false "Claim options"
// @Success      200 {object} dto.Response{data=TaskResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id}/claim [post]
func (h *TaskHandler) Claim(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	var req ClaimTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	task, err := h.tasks.Claim(c.Request.Context(), taskID, userID, req.Override)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTaskResponse(task))
}

// Complete godoc
// @Summary      Complete the caller's assignment on a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Param        request body CompleteTaskRequest false "Completion options"
// @Success      200 {object} dto.Response{data=AssignmentResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	var req CompleteTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}
	assignmentID, err := parseUUIDPtr(req.AssignmentID)
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	assignment, err := h.tasks.CompleteAssignment(c.Request.Context(), automationapp.CompleteAssignmentInput{
		TaskID:       taskID,
		UserID:       userID,
		Notes:        req.Notes,
		AssignmentID: assignmentID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAssignmentResponse(assignment))
}

// CompleteWorkflowStep godoc
// @Summary      Complete the active workflow step behind a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} dto.Response{data=StepTaskResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id}/workflow-step/complete [post]
func (h *TaskHandler) CompleteWorkflowStep(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	step, err := h.tasks.CompleteWorkflowStep(c.Request.Context(), taskID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toStepTaskResponse(step))
}

// Reassign godoc
// @Summary      Reassign a task or assignment to another user
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Param        request body ReassignTaskRequest true "Reassignment request"
// @Success      200 {object} dto.Response{data=TaskResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id}/reassign [post]
func (h *TaskHandler) Reassign(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	var req ReassignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		h.BadRequest(c, "Invalid target user ID format")
		return
	}
	assignmentID, err := parseUUIDPtr(req.AssignmentID)
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	input := automationapp.ReassignInput{
		TaskID:       taskID,
		AssignmentID: assignmentID,
		ToUserID:     toUserID,
	}
	if req.RoleHint != nil {
		role, err := identity.ParseRole(*req.RoleHint)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		input.RoleHint = &role
	}

	task, err := h.tasks.Reassign(c.Request.Context(), input, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTaskResponse(task))
}

// Cancel godoc
// @Summary      Cancel a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} dto.Response{data=TaskResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /automation/tasks/{id}/cancel [post]
func (h *TaskHandler) Cancel(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	task, err := h.tasks.Cancel(c.Request.Context(), taskID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTaskResponse(task))
}

// MyAssignments godoc
// @Summary      List the caller's assignments
// @Tags         tasks
// @Produce      json
// @Success      200 {object} dto.Response{data=[]AssignmentResponse}
// @Security     BearerAuth
// @Router       /assignments/my [get]
func (h *TaskHandler) MyAssignments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.tasks.MyAssignments(c.Request.Context(), userID, toSharedFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]AssignmentResponse, 0, len(page.Items))
	for _, assignment := range page.Items {
		items = append(items, toAssignmentResponse(assignment))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

func toTaskResponse(task *automation.AutomationTask) TaskResponse {
	resp := TaskResponse{
		ID:              task.ID.String(),
		Type:            string(task.Type),
		Status:          string(task.Status),
		Priority:        string(task.Priority),
		Title:           task.Title,
		CreatedByUserID: task.CreatedByUserID.String(),
		ClaimedAt:       task.ClaimedAt,
		IsOrderRoot:     task.IsOrderRoot,
		CompletedAt:     task.CompletedAt,
		Metadata:        task.Metadata,
		Version:         task.Version,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
	if task.RelatedOrderID != nil {
		id := task.RelatedOrderID.String()
		resp.RelatedOrderID = &id
	}
	if task.RequiredRole != nil {
		role := string(*task.RequiredRole)
		resp.RequiredRole = &role
	}
	if task.ClaimedByUserID != nil {
		id := task.ClaimedByUserID.String()
		resp.ClaimedByUserID = &id
	}
	for _, assignment := range task.Assignments {
		resp.Assignments = append(resp.Assignments, toAssignmentResponse(assignment))
	}
	for _, event := range task.Events {
		resp.Events = append(resp.Events, toTaskEventResponse(event))
	}
	return resp
}

func toAssignmentResponse(assignment *automation.TaskAssignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:               assignment.ID.String(),
		AutomationTaskID: assignment.AutomationTaskID.String(),
		RoleHint:         string(assignment.RoleHint),
		Status:           string(assignment.Status),
		Notes:            assignment.Notes,
		AssignedAt:       assignment.AssignedAt,
		CompletedAt:      assignment.CompletedAt,
	}
	if assignment.UserID != nil {
		id := assignment.UserID.String()
		resp.UserID = &id
	}
	return resp
}

func toTaskEventResponse(event *automation.TaskEvent) TaskEventResponse {
	resp := TaskEventResponse{
		ID:        event.ID.String(),
		EventType: string(event.EventType),
		Metadata:  event.Metadata,
		CreatedAt: event.CreatedAt,
	}
	if event.UserID != nil {
		id := event.UserID.String()
		resp.UserID = &id
	}
	return resp
}
