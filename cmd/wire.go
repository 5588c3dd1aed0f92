package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/garageroute/services/workshop/config"
	"example.com/garageroute/services/workshop/internal/api"
	"example.com/garageroute/services/workshop/internal/cache"
	"example.com/garageroute/services/workshop/internal/db"
	"example.com/garageroute/services/workshop/internal/messaging"
	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
	"example.com/garageroute/services/workshop/internal/search"
	"example.com/garageroute/services/workshop/internal/service"
	"example.com/garageroute/services/workshop/internal/tracing"
)

// deps holds everything the api and worker commands share.
type deps struct {
	cfg      config.Config
	db       *gorm.DB
	cache    *cache.RedisCache
	tracer   tracing.Tracer
	bus      *messaging.AzureServiceBus
	elastic  *search.ElasticClient
	services api.Services
}

func configureLogging(cfg config.Config) {
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initDatabase connects and runs the schema migration.
func initDatabase(cfg config.Config) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DB, cfg.Environment == "development")
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := models.SetupModels(gdb); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return gdb, nil
}

// buildDeps wires the repositories and services. Optional backends degrade
// to warnings so the service still comes up without them.
func buildDeps(cfg config.Config) (*deps, error) {
	gdb, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	var bus *messaging.AzureServiceBus
	if cfg.Azure.QueueConnStr != "" {
		bus, err = messaging.NewAzureServiceBus(cfg.Azure)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize service bus")
		}
	} else {
		log.Warn().Msg("No service bus connection string configured, events will not be published")
	}

	orderRepo := repository.NewOrderRepository(gdb)
	customerRepo := repository.NewCustomerRepository(gdb)
	vehicleRepo := repository.NewVehicleRepository(gdb)
	partRepo := repository.NewPartRepository(gdb)
	appointmentRepo := repository.NewAppointmentRepository(gdb)

	var indexer service.OrderIndexer
	var publisher messaging.Publisher
	if bus != nil {
		publisher = bus
	}
	if elasticClient != nil {
		indexer = elasticClient
	}

	orderService := service.NewOrderService(
		orderRepo, customerRepo, vehicleRepo, partRepo,
		redisCache, indexer, publisher, tracer,
		cfg.Billing.DepositRatioDecimal(), cfg.Approval.LinkTTL,
	)

	svcs := api.Services{
		Orders:       orderService,
		Customers:    service.NewCustomerService(customerRepo, vehicleRepo),
		Stock:        service.NewStockService(partRepo, redisCache, publisher),
		Appointments: service.NewAppointmentService(appointmentRepo, customerRepo, publisher),
		Dashboard:    service.NewDashboardService(orderRepo, partRepo, redisCache, cfg.Redis.StatsTTL),
	}
	if elasticClient != nil {
		svcs.Search = elasticClient
	}

	return &deps{
		cfg:      cfg,
		db:       gdb,
		cache:    redisCache,
		tracer:   tracer,
		bus:      bus,
		elastic:  elasticClient,
		services: svcs,
	}, nil
}
