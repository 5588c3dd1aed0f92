package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"example.com/garageroute/services/workshop/internal/metrics"
)

// MetricsHandler exposes the in-process metrics and health state
type MetricsHandler struct {
	collector *metrics.Collector
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(collector *metrics.Collector) *MetricsHandler {
	return &MetricsHandler{collector: collector}
}

// RegisterRoutes registers the metrics and health endpoints
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", h.GetMetrics)
	router.GET("/health", h.GetHealth)
}

// GetMetrics returns all collected metrics
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	h.collector.SetGauge("runtime.goroutines", int64(runtime.NumGoroutine()))
	c.JSON(http.StatusOK, h.collector.GetAllMetrics())
}

// GetHealth reports overall and per-component health
func (h *MetricsHandler) GetHealth(c *gin.Context) {
	checks := h.collector.GetHealthChecks()

	healthy := true
	for _, ok := range checks {
		if !ok {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":         state,
		"components":     checks,
		"uptime_seconds": h.collector.GetUptimeSeconds(),
	})
}
