package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	notificationapp "github.com/opsflow/backend/internal/application/notification"
	"github.com/opsflow/backend/internal/domain/notification"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// NotificationHandler handles notification inbox endpoints
type NotificationHandler struct {
	BaseHandler
	notifications *notificationapp.Service
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *notificationapp.Service) *NotificationHandler {
	return &NotificationHandler{notifications: service}
}

// RegisterRoutes registers notification routes
func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/notifications")
	{
		group.GET("", h.List)
		group.POST("/:id/read", h.MarkRead)
		group.POST("/read-all", h.MarkAllRead)
	}
}

// ListNotificationsRequest represents notification list query parameters
type ListNotificationsRequest struct {
	dto.ListRequest
	UnreadOnly bool `form:"unread_only"`
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	Title      string         `json:"title"`
	Body       string         `json:"body,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   *string        `json:"entity_id,omitempty"`
	Metadata   shared.JSONMap `json:"metadata,omitempty"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// MarkAllReadResponse reports how many notifications were marked read
type MarkAllReadResponse struct {
	Marked int64 `json:"marked"`
}

// List godoc
// @Summary      List the caller's notifications
// @Tags         notifications
// @Produce      json
// @Param        unread_only query bool false "Only unread notifications"
// @Success      200 {object} dto.Response{data=[]NotificationResponse}
// @Security     BearerAuth
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.notifications.List(c.Request.Context(), userID, req.UnreadOnly, toSharedFilter(req.ListRequest))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]NotificationResponse, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, toNotificationResponse(n))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// MarkRead godoc
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Param        id path string true "Notification ID" format(uuid)
// @Success      200 {object} dto.Response{data=NotificationResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid notification ID format")
		return
	}

	n, err := h.notifications.MarkRead(c.Request.Context(), notificationID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toNotificationResponse(n))
}

// MarkAllRead godoc
// @Summary      Mark all of the caller's notifications as read
// @Tags         notifications
// @Produce      json
// @Success      200 {object} dto.Response{data=MarkAllReadResponse}
// @Security     BearerAuth
// @Router       /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	marked, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, MarkAllReadResponse{Marked: marked})
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:         n.ID.String(),
		EventType:  n.EventType,
		Title:      n.Title,
		Body:       n.Body,
		EntityType: n.EntityType,
		Metadata:   n.Metadata,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
	if n.EntityID != nil {
		id := n.EntityID.String()
		resp.EntityID = &id
	}
	return resp
}
