package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/opsflow/backend/internal/application/inventory"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// InventoryHandler handles inventory endpoints
type InventoryHandler struct {
	BaseHandler
	inventory *inventoryapp.Service
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(service *inventoryapp.Service) *InventoryHandler {
	return &InventoryHandler{inventory: service}
}

// RegisterRoutes registers inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/inventory")
	{
		items.POST("/items", h.CreateItem)
		items.GET("/items", h.List)
		items.GET("/items/low-stock", h.LowStock)
		items.GET("/product/:product_id", h.GetByProductID)
		items.POST("/product/:product_id/restock", h.Restock)
		items.POST("/product/:product_id/adjust", h.Adjust)
		items.PUT("/product/:product_id/threshold", h.SetThreshold)
		items.GET("/transactions", h.Transactions)
	}
}

// CreateItemRequest represents a request to register an inventory item
type CreateItemRequest struct {
	ProductID         string `json:"product_id" binding:"required,min=1,max=64"`
	ProductName       string `json:"product_name" binding:"required,min=1,max=255"`
	InitialStock      int    `json:"initial_stock" binding:"omitempty,min=0"`
	LowStockThreshold int    `json:"low_stock_threshold" binding:"omitempty,min=0"`
}

// RestockRequest represents a restock request
type RestockRequest struct {
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Notes    string `json:"notes" binding:"omitempty,max=2000"`
}

// AdjustStockRequest represents a manual stock adjustment request
type AdjustStockRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required,oneof=adjustment return damage correction"`
	Notes  string `json:"notes" binding:"omitempty,max=2000"`
}

// SetThresholdRequest represents a low stock threshold update
type SetThresholdRequest struct {
	Threshold int `json:"threshold" binding:"min=0"`
}

// ListTransactionsRequest represents transaction list query parameters
type ListTransactionsRequest struct {
	dto.ListRequest
	InventoryID string `form:"inventory_id" binding:"omitempty,uuid"`
	Reason      string `form:"reason" binding:"omitempty,oneof=sale restock adjustment return damage correction processingIn processingOut"`
}

// InventoryItemResponse represents an inventory item in API responses
type InventoryItemResponse struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"product_id"`
	ProductName       string    `json:"product_name"`
	TotalStock        int       `json:"total_stock"`
	TotalSold         int       `json:"total_sold"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TransactionResponse represents a stock transaction in API responses
type TransactionResponse struct {
	ID                string    `json:"id"`
	InventoryID       string    `json:"inventory_id"`
	Change            int       `json:"change"`
	Reason            string    `json:"reason"`
	RelatedSaleID     *string   `json:"related_sale_id,omitempty"`
	RelatedOrderID    *string   `json:"related_order_id,omitempty"`
	PerformedByUserID string    `json:"performed_by_user_id"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateItem godoc
// @Summary      Register an inventory item
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        request body CreateItemRequest true "Item registration request"
// @Success      201 {object} dto.Response{data=InventoryItemResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /inventory/items [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	item, err := h.inventory.CreateItem(c.Request.Context(), req.ProductID, req.ProductName, req.InitialStock, req.LowStockThreshold, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toItemResponse(item))
}

// List godoc
// @Summary      List inventory items
// @Tags         inventory
// @Produce      json
// @Success      200 {object} dto.Response{data=[]InventoryItemResponse}
// @Security     BearerAuth
// @Router       /inventory/items [get]
func (h *InventoryHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.inventory.List(c.Request.Context(), toSharedFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]InventoryItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, toItemResponse(item))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// LowStock godoc
// @Summary      List items at or below their low stock threshold
// @Tags         inventory
// @Produce      json
// @Param        limit query int false "Maximum rows" default(50)
// @Success      200 {object} dto.Response{data=[]InventoryItemResponse}
// @Security     BearerAuth
// @Router       /inventory/items/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	items, err := h.inventory.ListLowStock(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]InventoryItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	h.Success(c, resp)
}

// GetByProductID godoc
// @Summary      Get an inventory item by product ID
// @Tags         inventory
// @Produce      json
// @Param        product_id path string true "Product ID"
// @Success      200 {object} dto.Response{data=InventoryItemResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /inventory/product/{product_id} [get]
func (h *InventoryHandler) GetByProductID(c *gin.Context) {
	item, err := h.inventory.GetByProductID(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toItemResponse(item))
}

// Restock godoc
// @Summary      Add stock to an item
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        product_id path string true "Product ID"
// @Param        request body RestockRequest true "Restock request"
// @Success      200 {object} dto.Response{data=InventoryItemResponse}
// @Security     BearerAuth
// @Router       /inventory/product/{product_id}/restock [post]
func (h *InventoryHandler) Restock(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	item, err := h.inventory.Restock(c.Request.Context(), c.Param("product_id"), req.Quantity, userID, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toItemResponse(item))
}

// Adjust godoc
// @Summary      Apply a manual stock adjustment
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        product_id path string true "Product ID"
// @Param        request body AdjustStockRequest true "Adjustment request"
// @Success      200 {object} dto.Response{data=InventoryItemResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /inventory/product/{product_id}/adjust [post]
func (h *InventoryHandler) Adjust(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	item, err := h.inventory.Adjust(c.Request.Context(), c.Param("product_id"), req.Delta, inventory.TransactionReason(req.Reason), userID, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toItemResponse(item))
}

// SetThreshold godoc
// @Summary      Set the low stock threshold of an item
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        product_id path string true "Product ID"
// @Param        request body SetThresholdRequest true "Threshold update"
// @Success      200 {object} dto.Response{data=InventoryItemResponse}
// @Security     BearerAuth
// @Router       /inventory/product/{product_id}/threshold [put]
func (h *InventoryHandler) SetThreshold(c *gin.Context) {
	var req SetThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	item, err := h.inventory.SetThreshold(c.Request.Context(), c.Param("product_id"), req.Threshold)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toItemResponse(item))
}

// Transactions godoc
// @Summary      List stock transactions
// @Tags         inventory
// @Produce      json
// @Param        inventory_id query string false "Inventory item ID" format(uuid)
// @Param        reason query string false "Transaction reason"
// @Success      200 {object} dto.Response{data=[]TransactionResponse}
// @Security     BearerAuth
// @Router       /inventory/transactions [get]
func (h *InventoryHandler) Transactions(c *gin.Context) {
	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := inventory.TransactionFilter{Filter: toSharedFilter(req.ListRequest)}
	if req.InventoryID != "" {
		inventoryID, err := uuid.Parse(req.InventoryID)
		if err != nil {
			h.BadRequest(c, "Invalid inventory ID format")
			return
		}
		filter.InventoryID = &inventoryID
	}
	if req.Reason != "" {
		reason := inventory.TransactionReason(req.Reason)
		filter.Reason = &reason
	}

	page, err := h.inventory.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TransactionResponse, 0, len(page.Items))
	for _, tx := range page.Items {
		items = append(items, toTransactionResponse(tx))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

func toItemResponse(item *inventory.Item) InventoryItemResponse {
	return InventoryItemResponse{
		ID:                item.ID.String(),
		ProductID:         item.ProductID,
		ProductName:       item.ProductName,
		TotalStock:        item.TotalStock,
		TotalSold:         item.TotalSold,
		LowStockThreshold: item.LowStockThreshold,
		LowStock:          item.IsLowStock(),
		Version:           item.Version,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

func toTransactionResponse(tx *inventory.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                tx.ID.String(),
		InventoryID:       tx.InventoryID.String(),
		Change:            tx.Change,
		Reason:            string(tx.Reason),
		PerformedByUserID: tx.PerformedByUserID.String(),
		Notes:             tx.Notes,
		CreatedAt:         tx.CreatedAt,
	}
	if tx.RelatedSaleID != nil {
		id := tx.RelatedSaleID.String()
		resp.RelatedSaleID = &id
	}
	if tx.RelatedOrderID != nil {
		id := tx.RelatedOrderID.String()
		resp.RelatedOrderID = &id
	}
	return resp
}
