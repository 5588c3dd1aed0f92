package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/garageroute/services/workshop/config"
	"example.com/garageroute/services/workshop/internal/api/handlers"
	"example.com/garageroute/services/workshop/internal/api/middleware"
	"example.com/garageroute/services/workshop/internal/metrics"
	"example.com/garageroute/services/workshop/internal/service"
	"example.com/garageroute/services/workshop/internal/tracing"
)

// Services bundles the application services the server exposes.
type Services struct {
	Orders       *service.OrderService
	Customers    *service.CustomerService
	Stock        *service.StockService
	Appointments *service.AppointmentService
	Dashboard    *service.DashboardService
	Search       handlers.OrderSearcher
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, svcs Services, tracer tracing.Tracer) *Server {
	server := &Server{
		config:   cfg,
		services: svcs,
		tracer:   tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: server.router,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Tracing(s.tracer))

	handlers.NewOrderHandler(s.services.Orders, s.services.Search, s.tracer).RegisterRoutes(router)
	handlers.NewCustomerHandler(s.services.Customers).RegisterRoutes(router)
	handlers.NewStockHandler(s.services.Stock).RegisterRoutes(router)
	handlers.NewAppointmentHandler(s.services.Appointments).RegisterRoutes(router)
	handlers.NewDashboardHandler(s.services.Dashboard).RegisterRoutes(router)
	handlers.NewMetricsHandler(metrics.Default()).RegisterRoutes(router)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
