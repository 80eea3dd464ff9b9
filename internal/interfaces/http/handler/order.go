package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	workflowapp "github.com/opsflow/backend/internal/application/workflow"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// OrderHandler handles order and workflow step endpoints
type OrderHandler struct {
	BaseHandler
	orders *workflowapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *workflowapp.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.POST("", h.Create)
		orders.GET("", h.List)
		orders.GET("/:id", h.GetByID)
		orders.GET("/:id/active-step", h.ActiveStep)
	}
	steps := rg.Group("/tasks")
	{
		steps.POST("/:id/complete", h.CompleteStep)
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Type             string                 `json:"type" binding:"required"`
	RelatedChannelID *string                `json:"related_channel_id"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// ListOrdersRequest represents order list query parameters
type ListOrdersRequest struct {
	dto.ListRequest
	Type      string `form:"type"`
	Status    string `form:"status" binding:"omitempty,oneof=submitted inProgress awaitingConfirmation completed cancelled"`
	CreatedBy string `form:"created_by" binding:"omitempty,uuid"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID               string             `json:"id"`
	Type             string             `json:"type"`
	Status           string             `json:"status"`
	CreatedByUserID  string             `json:"created_by_user_id"`
	RelatedChannelID *string            `json:"related_channel_id,omitempty"`
	DeliveryLocation string             `json:"delivery_location,omitempty"`
	CustomerName     string             `json:"customer_name,omitempty"`
	CustomerPhone    string             `json:"customer_phone,omitempty"`
	Metadata         shared.JSONMap     `json:"metadata,omitempty"`
	Steps            []StepTaskResponse `json:"steps,omitempty"`
	Version          int                `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// StepTaskResponse represents a workflow step in API responses
type StepTaskResponse struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	StepKey        string     `json:"step_key"`
	Title          string     `json:"title"`
	Role           string     `json:"role"`
	Position       int        `json:"position"`
	Required       bool       `json:"required"`
	Status         string     `json:"status"`
	AssignedUserID *string    `json:"assigned_user_id,omitempty"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Create godoc
// @Summary      Create a new order
// @Description  Create an order and compile its workflow step sequence
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body CreateOrderRequest true "Order creation request"
// @Success      201 {object} dto.Response{data=OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	order, steps, err := h.orders.CreateOrder(c.Request.Context(), workflowapp.CreateOrderInput{
		Type:             req.Type,
		CreatorID:        actor.UserID,
		RelatedChannelID: req.RelatedChannelID,
		Metadata:         shared.JSONMap(req.Metadata),
	}, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toOrderResponse(order, steps))
}

// List godoc
// @Summary      List orders
// @Description  Retrieve a paginated list of orders with optional filtering
// @Tags         orders
// @Produce      json
// @Param        type query string false "Order type"
// @Param        status query string false "Order status"
// @Success      200 {object} dto.Response{data=[]OrderResponse}
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var req ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := workflow.OrderFilter{Filter: toSharedFilter(req.ListRequest)}
	if req.Type != "" {
		orderType, err := workflow.ParseOrderType(req.Type)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.Type = &orderType
	}
	if req.Status != "" {
		status := workflow.OrderStatus(req.Status)
		filter.Status = &status
	}
	if req.CreatedBy != "" {
		createdBy, err := uuid.Parse(req.CreatedBy)
		if err != nil {
			h.BadRequest(c, "Invalid created_by format")
			return
		}
		filter.CreatedByUserID = &createdBy
	}

	page, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]OrderResponse, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, toOrderResponse(order, nil))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @Summary      Get order by ID
// @Description  Retrieve an order with its workflow steps
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=OrderResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetByID(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	order, steps, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(order, steps))
}

// ActiveStep godoc
// @Summary      Get the active workflow step of an order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=StepTaskResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/active-step [get]
func (h *OrderHandler) ActiveStep(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	step, err := h.orders.ActiveStep(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if step == nil {
		h.Success(c, nil)
		return
	}

	h.Success(c, toStepTaskResponse(step))
}

// CompleteStep godoc
// @Summary      Complete a workflow step
// @Description  Transition an active step to done and advance the order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Workflow step ID" format(uuid)
// @Success      200 {object} dto.Response{data=StepTaskResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks/{id}/complete [post]
func (h *OrderHandler) CompleteStep(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	stepTaskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid step ID format")
		return
	}

	step, err := h.orders.CompleteStep(c.Request.Context(), stepTaskID, actor.UserID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toStepTaskResponse(step))
}

func toOrderResponse(order *workflow.Order, steps []*workflow.WorkflowStepTask) OrderResponse {
	resp := OrderResponse{
		ID:               order.ID.String(),
		Type:             string(order.Type),
		Status:           string(order.Status),
		CreatedByUserID:  order.CreatedByUserID.String(),
		RelatedChannelID: order.RelatedChannelID,
		DeliveryLocation: order.DeliveryLocation,
		CustomerName:     order.CustomerName,
		CustomerPhone:    order.CustomerPhone,
		Metadata:         order.Metadata,
		Version:          order.Version,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, step := range steps {
		resp.Steps = append(resp.Steps, toStepTaskResponse(step))
	}
	return resp
}

func toStepTaskResponse(step *workflow.WorkflowStepTask) StepTaskResponse {
	resp := StepTaskResponse{
		ID:          step.ID.String(),
		OrderID:     step.OrderID.String(),
		StepKey:     step.StepKey,
		Title:       step.Title,
		Role:        step.Role,
		Position:    step.Position,
		Required:    step.Required,
		Status:      string(step.Status),
		ActivatedAt: step.ActivatedAt,
		CompletedAt: step.CompletedAt,
		CreatedAt:   step.CreatedAt,
		UpdatedAt:   step.UpdatedAt,
	}
	if step.AssignedUserID != nil {
		id := step.AssignedUserID.String()
		resp.AssignedUserID = &id
	}
	return resp
}
