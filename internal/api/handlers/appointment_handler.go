package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/garageroute/services/workshop/internal/service"
)

// AppointmentHandler exposes the appointment book over HTTP
type AppointmentHandler struct {
	service *service.AppointmentService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: svc}
}

// RegisterRoutes registers the appointment endpoints
func (h *AppointmentHandler) RegisterRoutes(router *gin.Engine) {
	appointments := router.Group("/api/v1/appointments")
	{
		appointments.POST("", h.Schedule)
		appointments.GET("", h.ListDay)
		appointments.POST("/:id/confirm", h.Confirm)
		appointments.POST("/:id/cancel", h.Cancel)
	}
}

type appointmentRequest struct {
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	VehicleID   *uuid.UUID `json:"vehicle_id"`
	ScheduledAt time.Time  `json:"scheduled_at" binding:"required"`
	Service     string     `json:"service"`
	Notes       string     `json:"notes"`
}

// Schedule books an appointment
func (h *AppointmentHandler) Schedule(c *gin.Context) {
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appointment, err := h.service.Schedule(c.Request.Context(), service.AppointmentInput{
		CustomerID:  req.CustomerID,
		VehicleID:   req.VehicleID,
		ScheduledAt: req.ScheduledAt,
		Service:     req.Service,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appointment)
}

// ListDay returns the appointments for a day, today by default
func (h *AppointmentHandler) ListDay(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	appointments, err := h.service.ListDay(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// Confirm marks a scheduled appointment as confirmed
func (h *AppointmentHandler) Confirm(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	appointment, err := h.service.Confirm(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

// Cancel cancels an appointment
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	appointment, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}
