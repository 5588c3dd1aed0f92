package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
	"example.com/garageroute/services/workshop/internal/service"
	"example.com/garageroute/services/workshop/internal/tracing"
)

// OrderSearcher runs free-text queries over the order index.
type OrderSearcher interface {
	SearchOrders(ctx context.Context, text string, size int) ([]map[string]interface{}, error)
}

// OrderHandler exposes service orders over HTTP
type OrderHandler struct {
	service *service.OrderService
	search  OrderSearcher
	tracer  tracing.Tracer
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, search OrderSearcher, tracer tracing.Tracer) *OrderHandler {
	return &OrderHandler{service: svc, search: search, tracer: tracer}
}

// RegisterRoutes registers the order endpoints
func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	orders := router.Group("/api/v1/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PATCH("/:id", h.UpdateOrder)
		orders.GET("/:id/history", h.GetHistory)
		orders.POST("/:id/transition", h.Transition)
		orders.POST("/:id/approve", h.Approve)
		orders.POST("/:id/reject", h.Reject)
		orders.POST("/:id/items", h.AddItem)
		orders.PUT("/:id/items/:itemID", h.UpdateItem)
		orders.DELETE("/:id/items/:itemID", h.RemoveItem)
		orders.POST("/:id/payments", h.AddPayment)
		orders.POST("/:id/payments/:paymentID/confirm", h.ConfirmPayment)
		orders.GET("/:id/requisitions", h.ListRequisitions)
		orders.POST("/:id/requisitions", h.CreateRequisition)
		orders.PATCH("/:id/requisitions/:reqID", h.UpdateRequisition)
	}

	router.GET("/api/v1/search/orders", h.SearchOrders)

	public := router.Group("/public/orders")
	{
		public.GET("/:token", h.GetPublicOrder)
		public.POST("/:token/approve", h.ApproveByToken)
		public.POST("/:token/reject", h.RejectByToken)
	}
}

type createOrderRequest struct {
	CustomerID        uuid.UUID        `json:"customer_id" binding:"required"`
	VehicleID         uuid.UUID        `json:"vehicle_id" binding:"required"`
	Title             string           `json:"title"`
	IssueDescription  string           `json:"issue_description" binding:"required"`
	Priority          string           `json:"priority"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery"`
	EstimateTotal     *decimal.Decimal `json:"estimate_total"`
	InternalNotes     string           `json:"internal_notes"`
}

// CreateOrder opens a new service order
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("http-create-order")
	defer h.tracer.EndTransaction(txn)

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		CustomerID:        req.CustomerID,
		VehicleID:         req.VehicleID,
		Title:             req.Title,
		IssueDescription:  req.IssueDescription,
		Priority:          models.OrderPriority(req.Priority),
		EstimatedDelivery: req.EstimatedDelivery,
		EstimateTotal:     req.EstimateTotal,
		InternalNotes:     req.InternalNotes,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders returns orders matching the query filters. A number parameter
// looks a single order up by its human-facing number.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	if number := c.Query("number"); number != "" {
		order, err := h.service.GetOrderByNumber(c.Request.Context(), number)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, []models.ServiceOrder{*order})
		return
	}

	filter := repository.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		filter.CustomerID = &id
	}
	if raw := c.Query("vehicle_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle_id"})
			return
		}
		filter.VehicleID = &id
	}

	orders, err := h.service.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder returns a single order with its items and payments
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateOrderRequest struct {
	Title             *string          `json:"title"`
	IssueDescription  *string          `json:"issue_description"`
	Diagnosis         *string          `json:"diagnosis"`
	Priority          *string          `json:"priority"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery"`
	EstimateTotal     *decimal.Decimal `json:"estimate_total"`
	Discount          *decimal.Decimal `json:"discount"`
	InternalNotes     *string          `json:"internal_notes"`
	CustomerNotes     *string          `json:"customer_notes"`
	ExecutionNotes    *string          `json:"execution_notes"`
}

// UpdateOrder edits order fields
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.UpdateOrderInput{
		Title:             req.Title,
		IssueDescription:  req.IssueDescription,
		Diagnosis:         req.Diagnosis,
		EstimatedDelivery: req.EstimatedDelivery,
		EstimateTotal:     req.EstimateTotal,
		Discount:          req.Discount,
		InternalNotes:     req.InternalNotes,
		CustomerNotes:     req.CustomerNotes,
		ExecutionNotes:    req.ExecutionNotes,
	}
	if req.Priority != nil {
		priority := models.OrderPriority(*req.Priority)
		input.Priority = &priority
	}

	order, err := h.service.UpdateOrder(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetHistory returns the order's status log
func (h *OrderHandler) GetHistory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	history, err := h.service.GetHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor"`
	Notes  string `json:"notes"`
}

// Transition moves the order to a new status
func (h *OrderHandler) Transition(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.Transition(c.Request.Context(), id, models.OrderStatus(req.Status), req.Actor, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type approveRequest struct {
	ApprovedBy string           `json:"approved_by" binding:"required"`
	Amount     *decimal.Decimal `json:"amount"`
	Channel    string           `json:"channel"`
	Notes      string           `json:"notes"`
}

// Approve confirms the quote on behalf of the customer
func (h *OrderHandler) Approve(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.Approve(c.Request.Context(), id, service.ApproveInput{
		ApprovedBy: req.ApprovedBy,
		Amount:     req.Amount,
		Channel:    models.ApprovalChannel(req.Channel),
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type rejectRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// Reject declines the quote and cancels the order
func (h *OrderHandler) Reject(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.Reject(c.Request.Context(), id, req.Actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type itemRequest struct {
	Description string          `json:"description" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Notes       string          `json:"notes"`
	PartID      *uuid.UUID      `json:"part_id"`
	SkipStock   bool            `json:"skip_stock_movement"`
}

func (r itemRequest) toInput() service.ItemInput {
	return service.ItemInput{
		Description:       r.Description,
		Category:          models.ItemCategory(r.Category),
		Quantity:          r.Quantity,
		UnitPrice:         r.UnitPrice,
		Notes:             r.Notes,
		PartID:            r.PartID,
		SkipStockMovement: r.SkipStock,
	}
}

// AddItem appends a billable line to the order
func (h *OrderHandler) AddItem(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.AddItem(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// UpdateItem edits a billable line
func (h *OrderHandler) UpdateItem(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseUUIDParam(c, "itemID")
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.UpdateItem(c.Request.Context(), id, itemID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RemoveItem deletes a billable line
func (h *OrderHandler) RemoveItem(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseUUIDParam(c, "itemID")
	if !ok {
		return
	}

	order, err := h.service.RemoveItem(c.Request.Context(), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type paymentRequest struct {
	Method     string           `json:"method" binding:"required"`
	Amount     decimal.Decimal  `json:"amount" binding:"required"`
	Tendered   *decimal.Decimal `json:"tendered"`
	Pending    bool             `json:"pending"`
	ReceivedBy string           `json:"received_by"`
	Notes      string           `json:"notes"`
}

// AddPayment registers a payment against the order
func (h *OrderHandler) AddPayment(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.service.AddPayment(c.Request.Context(), id, service.PaymentInput{
		Method:     models.PaymentMethod(req.Method),
		Amount:     req.Amount,
		Tendered:   req.Tendered,
		Pending:    req.Pending,
		ReceivedBy: req.ReceivedBy,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ConfirmPayment confirms a pending payment
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	paymentID, ok := parseUUIDParam(c, "paymentID")
	if !ok {
		return
	}

	payment, err := h.service.ConfirmPayment(c.Request.Context(), id, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type requisitionRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	PartID      *uuid.UUID      `json:"part_id"`
	SupplierID  *uuid.UUID      `json:"supplier_id"`
	ExpectedAt  *time.Time      `json:"expected_at"`
	Notes       string          `json:"notes"`
}

// CreateRequisition opens a part requisition on the order
func (h *OrderHandler) CreateRequisition(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req requisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := h.service.CreateRequisition(c.Request.Context(), id, service.RequisitionInput{
		Description: req.Description,
		Quantity:    req.Quantity,
		PartID:      req.PartID,
		SupplierID:  req.SupplierID,
		ExpectedAt:  req.ExpectedAt,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, requisition)
}

// ListRequisitions returns the order's part requisitions
func (h *OrderHandler) ListRequisitions(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	reqs, err := h.service.ListRequisitions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

type requisitionStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateRequisition advances a requisition through its procurement states
func (h *OrderHandler) UpdateRequisition(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	reqID, ok := parseUUIDParam(c, "reqID")
	if !ok {
		return
	}
	var req requisitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := h.service.UpdateRequisitionStatus(c.Request.Context(), id, reqID, models.RequisitionStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

// SearchOrders runs a free-text search over the order index
func (h *OrderHandler) SearchOrders(c *gin.Context) {
	text := c.Query("q")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	size := parseIntQuery(c, "size", 20)
	hits, err := h.search.SearchOrders(c.Request.Context(), text, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

// publicOrderView is what a customer following the approval link sees. It
// hides internal notes and staff-only fields.
type publicOrderView struct {
	Number            string               `json:"number"`
	Status            string               `json:"status"`
	Title             string               `json:"title"`
	IssueDescription  string               `json:"issue_description"`
	Diagnosis         string               `json:"diagnosis,omitempty"`
	CustomerName      string               `json:"customer_name"`
	VehicleName       string               `json:"vehicle"`
	VehiclePlate      string               `json:"vehicle_plate"`
	Items             []models.ServiceItem `json:"items"`
	LaborTotal        decimal.Decimal      `json:"labor_total"`
	PartsTotal        decimal.Decimal      `json:"parts_total"`
	ThirdPartyTotal   decimal.Decimal      `json:"third_party_total"`
	Discount          decimal.Decimal      `json:"discount"`
	Total             decimal.Decimal      `json:"total"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	ExpiresAt         *time.Time           `json:"link_expires_at,omitempty"`
}

func toPublicView(order *models.ServiceOrder) publicOrderView {
	return publicOrderView{
		Number:            order.Number,
		Status:            string(order.Status),
		Title:             order.Title,
		IssueDescription:  order.IssueDescription,
		Diagnosis:         order.Diagnosis,
		CustomerName:      order.Customer.Name,
		VehicleName:       order.Vehicle.Brand + " " + order.Vehicle.Model,
		VehiclePlate:      order.Vehicle.Plate,
		Items:             order.Items,
		LaborTotal:        order.LaborTotal,
		PartsTotal:        order.PartsTotal,
		ThirdPartyTotal:   order.ThirdPartyTotal,
		Discount:          order.Discount,
		Total:             order.ReferenceTotal(),
		EstimatedDelivery: order.EstimatedDelivery,
		ExpiresAt:         order.PublicTokenExpiresAt,
	}
}

// GetPublicOrder serves the quote behind the customer approval link
func (h *OrderHandler) GetPublicOrder(c *gin.Context) {
	order, err := h.service.GetOrderByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPublicView(order))
}

type publicDecisionRequest struct {
	Name   string `json:"name" binding:"required"`
	Reason string `json:"reason"`
}

// ApproveByToken approves the quote through the public link
func (h *OrderHandler) ApproveByToken(c *gin.Context) {
	var req publicDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.ApproveByToken(c.Request.Context(), c.Param("token"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPublicView(order))
}

// RejectByToken declines the quote through the public link
func (h *OrderHandler) RejectByToken(c *gin.Context) {
	var req publicDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.RejectByToken(c.Request.Context(), c.Param("token"), req.Name, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPublicView(order))
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
