package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/service"
)

// StockHandler exposes parts and the stock movement ledger over HTTP
type StockHandler struct {
	service *service.StockService
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService) *StockHandler {
	return &StockHandler{service: svc}
}

// RegisterRoutes registers the stock endpoints
func (h *StockHandler) RegisterRoutes(router *gin.Engine) {
	parts := router.Group("/api/v1/parts")
	{
		parts.POST("", h.CreatePart)
		parts.GET("", h.ListParts)
		parts.GET("/:id", h.GetPart)
		parts.PUT("/:id", h.UpdatePart)
		parts.DELETE("/:id", h.DeactivatePart)
		parts.GET("/:id/movements", h.ListMovements)
		parts.POST("/:id/movements", h.RegisterMovement)
	}

	stock := router.Group("/api/v1/stock")
	{
		stock.GET("/low", h.ListLowStock)
		stock.GET("/categories", h.ListCategories)
		stock.POST("/categories", h.CreateCategory)
		stock.GET("/suppliers", h.ListSuppliers)
		stock.POST("/suppliers", h.CreateSupplier)
	}
}

type partRequest struct {
	Code             string          `json:"code" binding:"required"`
	Name             string          `json:"name" binding:"required"`
	CategoryID       *uuid.UUID      `json:"category_id"`
	SupplierID       *uuid.UUID      `json:"supplier_id"`
	Description      string          `json:"description"`
	ManufacturerCode string          `json:"manufacturer_code"`
	Barcode          string          `json:"barcode"`
	Location         string          `json:"location"`
	Unit             string          `json:"unit"`
	MinQuantity      decimal.Decimal `json:"min_quantity"`
	MaxQuantity      decimal.Decimal `json:"max_quantity"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	InitialQuantity  decimal.Decimal `json:"initial_quantity"`
}

func (r partRequest) toInput() service.PartInput {
	return service.PartInput{
		Code:             r.Code,
		Name:             r.Name,
		CategoryID:       r.CategoryID,
		SupplierID:       r.SupplierID,
		Description:      r.Description,
		ManufacturerCode: r.ManufacturerCode,
		Barcode:          r.Barcode,
		Location:         r.Location,
		Unit:             r.Unit,
		MinQuantity:      r.MinQuantity,
		MaxQuantity:      r.MaxQuantity,
		CostPrice:        r.CostPrice,
		SalePrice:        r.SalePrice,
		InitialQuantity:  r.InitialQuantity,
	}
}

// CreatePart registers a part
func (h *StockHandler) CreatePart(c *gin.Context) {
	var req partRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	part, err := h.service.CreatePart(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, part)
}

// ListParts returns the catalog, active parts only unless all=true
func (h *StockHandler) ListParts(c *gin.Context) {
	activeOnly := c.Query("all") != "true"
	parts, err := h.service.ListParts(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, parts)
}

// GetPart returns a single part
func (h *StockHandler) GetPart(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	part, err := h.service.GetPart(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, part)
}

// UpdatePart edits a part's catalog fields. Quantities only move through the
// ledger.
func (h *StockHandler) UpdatePart(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req partRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	part, err := h.service.UpdatePart(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, part)
}

// DeactivatePart retires a part from the catalog
func (h *StockHandler) DeactivatePart(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeactivatePart(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type movementRequest struct {
	Type      string          `json:"type" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
	CreatedBy string          `json:"created_by"`
}

// RegisterMovement writes a ledger entry against a part
func (h *StockHandler) RegisterMovement(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	movement, err := h.service.RegisterMovement(c.Request.Context(), id, service.MovementInput{
		Type:      models.MovementType(req.Type),
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reference: req.Reference,
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

// ListMovements returns a part's ledger, newest first
func (h *StockHandler) ListMovements(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	movements, err := h.service.ListMovements(c.Request.Context(), id, parseIntQuery(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

// ListLowStock returns active parts at or below their minimum quantity
func (h *StockHandler) ListLowStock(c *gin.Context) {
	parts, err := h.service.ListLowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, parts)
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateCategory registers a part category
func (h *StockHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := h.service.CreateCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// ListCategories returns the part categories
func (h *StockHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

type supplierRequest struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Notes   string `json:"notes"`
}

// CreateSupplier registers a supplier
func (h *StockHandler) CreateSupplier(c *gin.Context) {
	var req supplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	supplier := &models.Supplier{
		Name:    req.Name,
		Contact: req.Contact,
		Phone:   req.Phone,
		Email:   req.Email,
		Notes:   req.Notes,
	}
	if err := h.service.CreateSupplier(c.Request.Context(), supplier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

// ListSuppliers returns the suppliers
func (h *StockHandler) ListSuppliers(c *gin.Context) {
	suppliers, err := h.service.ListSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}
