package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/garageroute/services/workshop/internal/service"
)

// DashboardHandler serves the back-office dashboard numbers
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// RegisterRoutes registers the dashboard endpoint
func (h *DashboardHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/v1/dashboard", h.Stats)
}

// Stats returns the cached dashboard counters
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
