package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	salesapp "github.com/opsflow/backend/internal/application/sales"
	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// SalesHandler handles sale recording and reporting endpoints
type SalesHandler struct {
	BaseHandler
	sales *salesapp.Service
}

// NewSalesHandler creates a new SalesHandler
func NewSalesHandler(service *salesapp.Service) *SalesHandler {
	return &SalesHandler{sales: service}
}

// RegisterRoutes registers sales routes
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/sales")
	{
		group.POST("", h.Record)
		group.GET("", h.List)
		group.GET("/summary", h.Summary)
		group.GET("/performance", h.Performance)
		group.GET("/:id", h.GetByID)
		group.GET("/:id/classification", h.Classification)
	}
}

// RecordSaleRequest represents a request to record a sale
type RecordSaleRequest struct {
	ProductID      string  `json:"product_id" binding:"required,min=1,max=64"`
	Quantity       int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice      float64 `json:"unit_price" binding:"required,gt=0"`
	SaleChannel    string  `json:"sale_channel" binding:"required,oneof=agent store online wholesale"`
	RelatedOrderID *string `json:"related_order_id" binding:"omitempty,uuid"`
	IdempotencyKey *string `json:"idempotency_key" binding:"omitempty,min=1,max=128"`
	CustomerName   string  `json:"customer_name" binding:"omitempty,max=255"`
}

// ListSalesRequest represents sale list query parameters
type ListSalesRequest struct {
	dto.ListRequest
	ProductID string `form:"product_id"`
	SoldBy    string `form:"sold_by" binding:"omitempty,uuid"`
	Channel   string `form:"channel" binding:"omitempty,oneof=agent store online wholesale"`
	From      string `form:"from"`
	To        string `form:"to"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	SoldByUserID   string          `json:"sold_by_user_id"`
	SaleChannel    string          `json:"sale_channel"`
	RelatedOrderID *string         `json:"related_order_id,omitempty"`
	CustomerName   string          `json:"customer_name,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Record godoc
// @Summary      Record a sale
// @Description  Record a sale and decrement stock atomically. An idempotency
// @Description  key makes retries safe; a replayed key returns the original sale.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        X-Idempotency-Key header string false "Idempotency key"
// @Param        request body RecordSaleRequest true "Sale recording request"
// @Success      201 {object} dto.Response{data=SaleResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sales [post]
func (h *SalesHandler) Record(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	relatedOrderID, err := parseUUIDPtr(req.RelatedOrderID)
	if err != nil {
		h.BadRequest(c, "Invalid related order ID format")
		return
	}

	idempotencyKey := req.IdempotencyKey
	if key := c.GetHeader("X-Idempotency-Key"); key != "" {
		idempotencyKey = &key
	}

	sale, err := h.sales.RecordSale(c.Request.Context(), salesapp.RecordSaleInput{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		UnitPrice:      decimal.NewFromFloat(req.UnitPrice),
		SoldBy:         userID,
		SaleChannel:    req.SaleChannel,
		RelatedOrderID: relatedOrderID,
		IdempotencyKey: idempotencyKey,
		CustomerName:   req.CustomerName,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toSaleResponse(sale))
}

// List godoc
// @Summary      List sales
// @Tags         sales
// @Produce      json
// @Param        product_id query string false "Product ID"
// @Param        sold_by query string false "Seller user ID" format(uuid)
// @Param        channel query string false "Sale channel"
// @Param        from query string false "Range start (RFC 3339, inclusive)"
// @Param        to query string false "Range end (RFC 3339, exclusive)"
// @Success      200 {object} dto.Response{data=[]SaleResponse}
// @Security     BearerAuth
// @Router       /sales [get]
func (h *SalesHandler) List(c *gin.Context) {
	var req ListSalesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := sales.SaleFilter{Filter: toSharedFilter(req.ListRequest)}
	if req.ProductID != "" {
		filter.ProductID = &req.ProductID
	}
	if req.SoldBy != "" {
		soldBy, err := uuid.Parse(req.SoldBy)
		if err != nil {
			h.BadRequest(c, "Invalid sold_by format")
			return
		}
		filter.SoldByUserID = &soldBy
	}
	if req.Channel != "" {
		channel := sales.SaleChannel(req.Channel)
		filter.Channel = &channel
	}
	dateRange, err := parseDateRange(req.From, req.To)
	if err != nil {
		h.BadRequest(c, "Invalid date range format, expected RFC 3339")
		return
	}
	filter.Range = dateRange

	page, err := h.sales.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]SaleResponse, 0, len(page.Items))
	for _, sale := range page.Items {
		items = append(items, toSaleResponse(sale))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Summary godoc
// @Summary      Sales summary over a date range
// @Tags         sales
// @Produce      json
// @Param        from query string false "Range start (RFC 3339, inclusive)"
// @Param        to query string false "Range end (RFC 3339, exclusive)"
// @Success      200 {object} dto.Response{data=sales.Summary}
// @Security     BearerAuth
// @Router       /sales/summary [get]
func (h *SalesHandler) Summary(c *gin.Context) {
	dateRange, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		h.BadRequest(c, "Invalid date range format, expected RFC 3339")
		return
	}

	summary, err := h.sales.Summary(c.Request.Context(), dateRange)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// Performance godoc
// @Summary      Per-seller sales performance over a date range
// @Tags         sales
// @Produce      json
// @Param        from query string false "Range start (RFC 3339, inclusive)"
// @Param        to query string false "Range end (RFC 3339, exclusive)"
// @Success      200 {object} dto.Response{data=[]sales.SellerPerformance}
// @Security     BearerAuth
// @Router       /sales/performance [get]
func (h *SalesHandler) Performance(c *gin.Context) {
	dateRange, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		h.BadRequest(c, "Invalid date range format, expected RFC 3339")
		return
	}

	performance, err := h.sales.AgentPerformance(c.Request.Context(), dateRange)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, performance)
}

// GetByID godoc
// @Summary      Get sale by ID
// @Tags         sales
// @Produce      json
// @Param        id path string true "Sale ID" format(uuid)
// @Success      200 {object} dto.Response{data=SaleResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sales/{id} [get]
func (h *SalesHandler) GetByID(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	sale, err := h.sales.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSaleResponse(sale))
}

// Classification godoc
// @Summary      Commission classification of a sale
// @Tags         sales
// @Produce      json
// @Param        id path string true "Sale ID" format(uuid)
// @Success      200 {object} dto.Response{data=sales.Classification}
// @Security     BearerAuth
// @Router       /sales/{id}/classification [get]
func (h *SalesHandler) Classification(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	classification, err := h.sales.ClassifySale(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, classification)
}

func toSaleResponse(sale *sales.Sale) SaleResponse {
	resp := SaleResponse{
		ID:           sale.ID.String(),
		ProductID:    sale.ProductID,
		Quantity:     sale.Quantity,
		UnitPrice:    sale.UnitPrice,
		TotalAmount:  sale.TotalAmount,
		SoldByUserID: sale.SoldByUserID.String(),
		SaleChannel:  string(sale.SaleChannel),
		CustomerName: sale.CustomerName,
		CreatedAt:    sale.CreatedAt,
	}
	if sale.RelatedOrderID != nil {
		id := sale.RelatedOrderID.String()
		resp.RelatedOrderID = &id
	}
	return resp
}
