package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/garageroute/services/workshop/internal/metrics"
	"example.com/garageroute/services/workshop/internal/models"
)

func newTestStockService(partRepo *MockPartRepository) *StockService {
	return &StockService{
		partRepo:  partRepo,
		collector: metrics.Default(),
	}
}

func TestCreatePartWritesOpeningEntry(t *testing.T) {
	mockParts := new(MockPartRepository)
	service := newTestStockService(mockParts)

	mockParts.On("Create", mock.Anything, mock.AnythingOfType("*models.Part")).Return(nil)
	mockParts.On("ApplyMovement", mock.Anything, mock.MatchedBy(func(m *models.StockMovement) bool {
		return m.Type == models.MovementEntry && m.Quantity.Equal(decimal.NewFromInt(10))
	})).Return(nil)

	part, err := service.CreatePart(context.Background(), PartInput{
		Code:            "FLT-001",
		Name:            "Oil filter",
		CostPrice:       decimal.RequireFromString("12.50"),
		SalePrice:       decimal.RequireFromString("25.00"),
		InitialQuantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.True(t, part.Active)
	require.Equal(t, "unit", part.Unit)

	mockParts.AssertExpectations(t)
}

func TestCreatePartSkipsEntryWithoutInitialStock(t *testing.T) {
	mockParts := new(MockPartRepository)
	service := newTestStockService(mockParts)

	mockParts.On("Create", mock.Anything, mock.AnythingOfType("*models.Part")).Return(nil)

	_, err := service.CreatePart(context.Background(), PartInput{
		Code:      "FLT-002",
		Name:      "Air filter",
		SalePrice: decimal.RequireFromString("30.00"),
	})
	require.NoError(t, err)

	mockParts.AssertNotCalled(t, "ApplyMovement", mock.Anything, mock.Anything)
}

func TestRegisterMovementRejectsUnknownType(t *testing.T) {
	service := newTestStockService(new(MockPartRepository))

	_, err := service.RegisterMovement(context.Background(), uuid.New(), MovementInput{
		Type:     models.MovementType("donation"),
		Quantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestRegisterMovementRejectsNegativeQuantity(t *testing.T) {
	service := newTestStockService(new(MockPartRepository))

	_, err := service.RegisterMovement(context.Background(), uuid.New(), MovementInput{
		Type:     models.MovementExit,
		Quantity: decimal.NewFromInt(-3),
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestRegisterMovementRejectsZeroQuantity(t *testing.T) {
	service := newTestStockService(new(MockPartRepository))

	_, err := service.RegisterMovement(context.Background(), uuid.New(), MovementInput{
		Type: models.MovementEntry,
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestRegisterMovementAllowsNegativeTransfer(t *testing.T) {
	mockParts := new(MockPartRepository)
	service := newTestStockService(mockParts)

	mockParts.On("ApplyMovement", mock.Anything, mock.MatchedBy(func(m *models.StockMovement) bool {
		return m.Type == models.MovementTransfer && m.Quantity.Equal(decimal.NewFromInt(-5))
	})).Return(nil)

	_, err := service.RegisterMovement(context.Background(), uuid.New(), MovementInput{
		Type:     models.MovementTransfer,
		Quantity: decimal.NewFromInt(-5),
	})
	require.NoError(t, err)

	mockParts.AssertExpectations(t)
}

func TestRegisterMovementMapsInsufficientStock(t *testing.T) {
	mockParts := new(MockPartRepository)
	service := newTestStockService(mockParts)

	mockParts.On("ApplyMovement", mock.Anything, mock.Anything).Return(models.ErrInsufficientStock)

	_, err := service.RegisterMovement(context.Background(), uuid.New(), MovementInput{
		Type:     models.MovementExit,
		Quantity: decimal.NewFromInt(99),
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "insufficient stock")
}
