package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/garageroute/services/workshop/internal/models"
)

func TestDashboardStatsAggregates(t *testing.T) {
	mockOrders := new(MockOrderRepository)
	mockParts := new(MockPartRepository)
	service := NewDashboardService(mockOrders, mockParts, nil, time.Minute)

	mockOrders.On("CountByStatus", mock.Anything).Return(map[models.OrderStatus]int64{
		models.StatusReceived:   2,
		models.StatusInProgress: 3,
		models.StatusDelivered:  7,
		models.StatusCanceled:   1,
	}, nil)
	mockOrders.On("SumConfirmedPayments", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
		return since.Day() == 1 && since.Hour() == 0
	})).Return(map[models.PaymentMethod]string{
		models.MethodCash: "1250.00",
		models.MethodCard: "430.50",
	}, nil)
	mockParts.On("ListBelowMinimum", mock.Anything).Return([]models.Part{
		{Quantity: decimal.NewFromInt(4), MinQuantity: decimal.NewFromInt(5)},
		{Quantity: decimal.NewFromInt(1), MinQuantity: decimal.NewFromInt(5)},
	}, nil)

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.OpenOrders)
	require.Equal(t, int64(7), stats.OrdersByStatus[string(models.StatusDelivered)])
	require.Equal(t, "1250.00", stats.MonthlyRevenue[string(models.MethodCash)])
	require.Equal(t, 2, stats.LowStockCount)
	require.Equal(t, 1, stats.CriticalCount)

	mockOrders.AssertExpectations(t)
	mockParts.AssertExpectations(t)
}
