package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/garageroute/services/workshop/internal/cache"
	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
)

// DashboardStats is the aggregate snapshot served to the back office.
type DashboardStats struct {
	OpenOrders     int64             `json:"open_orders"`
	OrdersByStatus map[string]int64  `json:"orders_by_status"`
	MonthlyRevenue map[string]string `json:"monthly_revenue"`
	LowStockCount  int               `json:"low_stock_count"`
	CriticalCount  int               `json:"critical_stock_count"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// DashboardService aggregates stats, cached in Redis with a TTL and
// invalidated by the write paths.
type DashboardService struct {
	orderRepo repository.OrderRepository
	partRepo  repository.PartRepository
	cache     *cache.RedisCache
	ttl       time.Duration
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(orderRepo repository.OrderRepository, partRepo repository.PartRepository, redisCache *cache.RedisCache, ttl time.Duration) *DashboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		orderRepo: orderRepo,
		partRepo:  partRepo,
		cache:     redisCache,
		ttl:       ttl,
	}
}

// Stats returns the dashboard snapshot, served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	if s.cache != nil {
		var cached DashboardStats
		if err := s.cache.Get(ctx, cache.DashboardStatsKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("dashboard cache read failed, recomputing")
		}
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.DashboardStatsKey, stats, s.ttl); err != nil {
			log.Warn().Err(err).Msg("failed to cache dashboard stats")
		}
	}
	return stats, nil
}

func (s *DashboardService) compute(ctx context.Context) (*DashboardStats, error) {
	counts, err := s.orderRepo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count orders")
	}

	byStatus := make(map[string]int64, len(counts))
	var open int64
	for status, count := range counts {
		byStatus[string(status)] = count
		if status != models.StatusDelivered && status != models.StatusCanceled {
			open += count
		}
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	revenue, err := s.orderRepo.SumConfirmedPayments(ctx, monthStart)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sum payments")
	}
	monthly := make(map[string]string, len(revenue))
	for method, total := range revenue {
		monthly[string(method)] = total
	}

	lowStock, err := s.partRepo.ListBelowMinimum(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list low stock")
	}
	critical := 0
	for i := range lowStock {
		if lowStock[i].Critical() {
			critical++
		}
	}

	return &DashboardStats{
		OpenOrders:     open,
		OrdersByStatus: byStatus,
		MonthlyRevenue: monthly,
		LowStockCount:  len(lowStock),
		CriticalCount:  critical,
		GeneratedAt:    now,
	}, nil
}
