package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/garageroute/services/workshop/internal/service"
)

// CustomerHandler exposes customers and their vehicles over HTTP
type CustomerHandler struct {
	service *service.CustomerService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(svc *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: svc}
}

// RegisterRoutes registers the customer and vehicle endpoints
func (h *CustomerHandler) RegisterRoutes(router *gin.Engine) {
	customers := router.Group("/api/v1/customers")
	{
		customers.POST("", h.CreateCustomer)
		customers.GET("", h.ListCustomers)
		customers.GET("/:id", h.GetCustomer)
		customers.PUT("/:id", h.UpdateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)
		customers.GET("/:id/vehicles", h.ListVehicles)
	}

	vehicles := router.Group("/api/v1/vehicles")
	{
		vehicles.POST("", h.CreateVehicle)
		vehicles.GET("/:id", h.GetVehicle)
		vehicles.PUT("/:id", h.UpdateVehicle)
		vehicles.DELETE("/:id", h.DeleteVehicle)
	}
}

type customerRequest struct {
	Name       string  `json:"name" binding:"required"`
	DocumentID *string `json:"document_id"`
	Phone      string  `json:"phone"`
	Email      string  `json:"email"`
	Address    string  `json:"address"`
	Notes      string  `json:"notes"`
}

func (r customerRequest) toInput() service.CustomerInput {
	return service.CustomerInput{
		Name:       r.Name,
		DocumentID: r.DocumentID,
		Phone:      r.Phone,
		Email:      r.Email,
		Address:    r.Address,
		Notes:      r.Notes,
	}
}

// CreateCustomer registers a customer
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer, err := h.service.CreateCustomer(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// ListCustomers returns customers, optionally filtered by a search term
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	customers, err := h.service.ListCustomers(
		c.Request.Context(),
		c.Query("search"),
		parseIntQuery(c, "limit", 50),
		parseIntQuery(c, "offset", 0),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// GetCustomer returns a single customer
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	customer, err := h.service.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// UpdateCustomer edits a customer
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer, err := h.service.UpdateCustomer(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer removes a customer
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type vehicleRequest struct {
	CustomerID uuid.UUID `json:"customer_id" binding:"required"`
	Plate      string    `json:"plate" binding:"required"`
	Brand      string    `json:"brand" binding:"required"`
	Model      string    `json:"model" binding:"required"`
	Year       *int      `json:"year"`
	Color      string    `json:"color"`
	VIN        string    `json:"vin"`
	Mileage    *int      `json:"mileage"`
	Notes      string    `json:"notes"`
}

func (r vehicleRequest) toInput() service.VehicleInput {
	return service.VehicleInput{
		CustomerID: r.CustomerID,
		Plate:      r.Plate,
		Brand:      r.Brand,
		Model:      r.Model,
		Year:       r.Year,
		Color:      r.Color,
		VIN:        r.VIN,
		Mileage:    r.Mileage,
		Notes:      r.Notes,
	}
}

// CreateVehicle registers a vehicle under a customer
func (h *CustomerHandler) CreateVehicle(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vehicle, err := h.service.CreateVehicle(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// GetVehicle returns a single vehicle
func (h *CustomerHandler) GetVehicle(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	vehicle, err := h.service.GetVehicle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// ListVehicles returns a customer's vehicles
func (h *CustomerHandler) ListVehicles(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	vehicles, err := h.service.ListVehicles(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// UpdateVehicle edits a vehicle
func (h *CustomerHandler) UpdateVehicle(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vehicle, err := h.service.UpdateVehicle(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// DeleteVehicle removes a vehicle
func (h *CustomerHandler) DeleteVehicle(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteVehicle(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
