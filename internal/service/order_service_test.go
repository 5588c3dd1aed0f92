package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/garageroute/services/workshop/config"
	"example.com/garageroute/services/workshop/internal/metrics"
	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
	"example.com/garageroute/services/workshop/internal/tracing"
)

// Mock repositories for testing
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *models.ServiceOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceOrder), args.Error(1)
}

func (m *MockOrderRepository) GetByNumber(ctx context.Context, number string) (*models.ServiceOrder, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceOrder), args.Error(1)
}

func (m *MockOrderRepository) GetByPublicToken(ctx context.Context, token string) (*models.ServiceOrder, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceOrder), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]models.ServiceOrder, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.ServiceOrder), args.Error(1)
}

func (m *MockOrderRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.ServiceOrder, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.ServiceOrder), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *models.ServiceOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatusWithHistory(ctx context.Context, order *models.ServiceOrder, entry *models.StatusHistory) error {
	args := m.Called(ctx, order, entry)
	return args.Error(0)
}

func (m *MockOrderRepository) SaveWithHistory(ctx context.Context, order *models.ServiceOrder, entry *models.StatusHistory) error {
	args := m.Called(ctx, order, entry)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, entry *models.StatusHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOrderRepository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistory, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.StatusHistory), args.Error(1)
}

func (m *MockOrderRepository) AddItem(ctx context.Context, order *models.ServiceOrder, item *models.ServiceItem) error {
	args := m.Called(ctx, order, item)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateItem(ctx context.Context, order *models.ServiceOrder, item *models.ServiceItem) error {
	args := m.Called(ctx, order, item)
	return args.Error(0)
}

func (m *MockOrderRepository) RemoveItem(ctx context.Context, order *models.ServiceOrder, itemID uuid.UUID) error {
	args := m.Called(ctx, order, itemID)
	return args.Error(0)
}

func (m *MockOrderRepository) AddPayment(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateRequisition(ctx context.Context, req *models.PartRequisition) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateRequisition(ctx context.Context, req *models.PartRequisition) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockOrderRepository) ListRequisitions(ctx context.Context, orderID uuid.UUID) ([]models.PartRequisition, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.PartRequisition), args.Error(1)
}

func (m *MockOrderRepository) CountOpenRequisitions(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[models.OrderStatus]int64), args.Error(1)
}

func (m *MockOrderRepository) SumConfirmedPayments(ctx context.Context, since time.Time) (map[models.PaymentMethod]string, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(map[models.PaymentMethod]string), args.Error(1)
}

// Mock PartRepository for testing
type MockPartRepository struct {
	mock.Mock
}

func (m *MockPartRepository) Create(ctx context.Context, part *models.Part) error {
	args := m.Called(ctx, part)
	return args.Error(0)
}

func (m *MockPartRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Part), args.Error(1)
}

func (m *MockPartRepository) GetByCode(ctx context.Context, code string) (*models.Part, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Part), args.Error(1)
}

func (m *MockPartRepository) List(ctx context.Context, activeOnly bool) ([]models.Part, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]models.Part), args.Error(1)
}

func (m *MockPartRepository) ListBelowMinimum(ctx context.Context) ([]models.Part, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Part), args.Error(1)
}

func (m *MockPartRepository) Save(ctx context.Context, part *models.Part) error {
	args := m.Called(ctx, part)
	return args.Error(0)
}

func (m *MockPartRepository) ApplyMovement(ctx context.Context, movement *models.StockMovement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockPartRepository) ListMovements(ctx context.Context, partID uuid.UUID, limit int) ([]models.StockMovement, error) {
	args := m.Called(ctx, partID, limit)
	return args.Get(0).([]models.StockMovement), args.Error(1)
}

func (m *MockPartRepository) ListOrderMovements(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.StockMovement), args.Error(1)
}

func (m *MockPartRepository) CreateCategory(ctx context.Context, category *models.PartCategory) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockPartRepository) ListCategories(ctx context.Context) ([]models.PartCategory, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.PartCategory), args.Error(1)
}

func (m *MockPartRepository) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	args := m.Called(ctx, supplier)
	return args.Error(0)
}

func (m *MockPartRepository) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Supplier), args.Error(1)
}

func newTestOrderService(orderRepo *MockOrderRepository, partRepo *MockPartRepository) *OrderService {
	tracer, _ := tracing.NewTracer(config.TracingConfig{})
	return &OrderService{
		orderRepo:    orderRepo,
		partRepo:     partRepo,
		tracer:       tracer,
		collector:    metrics.Default(),
		depositRatio: decimal.New(5, -1),
		tokenTTL:     72 * time.Hour,
	}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Number: "20260831-001",
		Status: models.StatusReceived,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := service.Transition(context.Background(), order.ID, models.StatusDelivered, "ana", "")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Equal(t, models.StatusReceived, order.Status)

	mockRepo.AssertNotCalled(t, "UpdateStatusWithHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionRejectsConcurrentStatusChange(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:            uuid.New(),
		Number:        "20260831-001",
		Status:        models.StatusWaitingApproval,
		EstimateTotal: decimalPtr("450.00"),
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	// Another transition won the row lock between our read and write
	mockRepo.On("UpdateStatusWithHistory", mock.Anything, order, mock.AnythingOfType("*models.StatusHistory")).
		Return(repository.ErrStatusConflict)

	_, err := service.Transition(context.Background(), order.ID, models.StatusCanceled, "ana", "")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "no longer")
}

func TestTransitionToWaitingApprovalMintsToken(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:            uuid.New(),
		Number:        "20260831-001",
		Status:        models.StatusDiagnosis,
		EstimateTotal: decimalPtr("450.00"),
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockRepo.On("UpdateStatusWithHistory", mock.Anything, order, mock.AnythingOfType("*models.StatusHistory")).Return(nil)

	updated, err := service.Transition(context.Background(), order.ID, models.StatusWaitingApproval, "ana", "quote ready")
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitingApproval, updated.Status)
	require.NotNil(t, updated.PublicToken)
	require.Len(t, *updated.PublicToken, 32)
	require.False(t, updated.PublicTokenRevoked)
	require.NotNil(t, updated.PublicTokenExpiresAt)
	require.WithinDuration(t, time.Now().Add(72*time.Hour), *updated.PublicTokenExpiresAt, time.Minute)

	mockRepo.AssertExpectations(t)
}

func TestTransitionToWaitingApprovalNeedsEstimateOrItems(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Status: models.StatusDiagnosis,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := service.Transition(context.Background(), order.ID, models.StatusWaitingApproval, "ana", "")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestTransitionInProgressRequiresDeposit(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:            uuid.New(),
		Status:        models.StatusApproved,
		ApprovalTotal: decimalPtr("100.00"),
		Payments: []models.Payment{
			{Amount: decimal.RequireFromString("49.99"), Status: models.PaymentConfirmed},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := service.Transition(context.Background(), order.ID, models.StatusInProgress, "ana", "")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "deposit")
	require.Nil(t, order.ExecutionStartedAt)
}

func TestTransitionInProgressBlockedByOpenRequisitions(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:            uuid.New(),
		Status:        models.StatusApproved,
		ApprovalTotal: decimalPtr("100.00"),
		Payments: []models.Payment{
			{Amount: decimal.RequireFromString("50.00"), Status: models.PaymentConfirmed},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockRepo.On("CountOpenRequisitions", mock.Anything, order.ID).Return(int64(2), nil)

	_, err := service.Transition(context.Background(), order.ID, models.StatusInProgress, "ana", "")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "requisition")
}

func TestTransitionInProgressStartsExecution(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:            uuid.New(),
		Status:        models.StatusApproved,
		ApprovalTotal: decimalPtr("100.00"),
		Payments: []models.Payment{
			{Amount: decimal.RequireFromString("50.00"), Status: models.PaymentConfirmed},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockRepo.On("CountOpenRequisitions", mock.Anything, order.ID).Return(int64(0), nil)
	mockRepo.On("UpdateStatusWithHistory", mock.Anything, order, mock.AnythingOfType("*models.StatusHistory")).Return(nil)

	updated, err := service.Transition(context.Background(), order.ID, models.StatusInProgress, "ana", "")
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, updated.Status)
	require.NotNil(t, updated.ExecutionStartedAt)

	mockRepo.AssertExpectations(t)
}

func TestTransitionDeliveredRequiresSettledBalance(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:            uuid.New(),
		Status:        models.StatusReady,
		ApprovalTotal: decimalPtr("100.00"),
		Payments: []models.Payment{
			{Amount: decimal.RequireFromString("60.00"), Status: models.PaymentConfirmed},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := service.Transition(context.Background(), order.ID, models.StatusDelivered, "ana", "")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "balance")
	require.Nil(t, order.DeliveredAt)

	// Settle the rest, the hand-over must go through now
	order.Payments = append(order.Payments, models.Payment{
		Amount: decimal.RequireFromString("40.00"),
		Status: models.PaymentConfirmed,
	})
	mockRepo.On("UpdateStatusWithHistory", mock.Anything, order, mock.AnythingOfType("*models.StatusHistory")).Return(nil)

	updated, err := service.Transition(context.Background(), order.ID, models.StatusDelivered, "ana", "")
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)
}

func TestApproveOnlyFromWaitingApproval(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Status: models.StatusReceived,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := service.Approve(context.Background(), order.ID, ApproveInput{ApprovedBy: "carlos"})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestApproveRecordsMetadataAndRevokesToken(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	token := "3f2a1b4c5d6e7f8091a2b3c4d5e6f708"
	created := time.Now().Add(-time.Hour)
	expires := time.Now().Add(71 * time.Hour)
	order := &models.ServiceOrder{
		ID:                   uuid.New(),
		Status:               models.StatusWaitingApproval,
		EstimateTotal:        decimalPtr("320.00"),
		PublicToken:          &token,
		PublicTokenCreatedAt: &created,
		PublicTokenExpiresAt: &expires,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockRepo.On("UpdateStatusWithHistory", mock.Anything, order, mock.AnythingOfType("*models.StatusHistory")).Return(nil)

	updated, err := service.Approve(context.Background(), order.ID, ApproveInput{ApprovedBy: "carlos"})
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, updated.Status)
	require.Equal(t, "carlos", updated.ApprovalConfirmedBy)
	require.Equal(t, models.ApprovalInPerson, updated.ApprovalChannel)
	require.NotNil(t, updated.ApprovalConfirmedAt)
	require.NotNil(t, updated.ApprovalTotal)
	require.True(t, updated.ApprovalTotal.Equal(decimal.RequireFromString("320.00")))
	require.True(t, updated.PublicTokenRevoked)
}

func TestGetOrderByTokenLazyExpiry(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	token := "3f2a1b4c5d6e7f8091a2b3c4d5e6f708"
	created := time.Now().Add(-80 * time.Hour)
	expires := time.Now().Add(-8 * time.Hour)
	order := &models.ServiceOrder{
		ID:                   uuid.New(),
		Status:               models.StatusWaitingApproval,
		PublicToken:          &token,
		PublicTokenCreatedAt: &created,
		PublicTokenExpiresAt: &expires,
	}
	mockRepo.On("GetByPublicToken", mock.Anything, token).Return(order, nil)
	mockRepo.On("SaveWithHistory", mock.Anything, order, mock.MatchedBy(func(entry *models.StatusHistory) bool {
		return entry != nil && entry.Notes == "public link expired"
	})).Return(nil).Once()

	// First access past expiry revokes and logs once
	_, err := service.GetOrderByToken(context.Background(), token)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.True(t, order.PublicTokenRevoked)

	// Replay fails without writing another history row
	_, err = service.GetOrderByToken(context.Background(), token)
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "SaveWithHistory", 1)
}

func TestApproveByTokenSingleUse(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	token := "3f2a1b4c5d6e7f8091a2b3c4d5e6f708"
	created := time.Now().Add(-time.Hour)
	expires := time.Now().Add(71 * time.Hour)
	order := &models.ServiceOrder{
		ID:                   uuid.New(),
		Status:               models.StatusWaitingApproval,
		EstimateTotal:        decimalPtr("500.00"),
		PublicToken:          &token,
		PublicTokenCreatedAt: &created,
		PublicTokenExpiresAt: &expires,
	}
	mockRepo.On("GetByPublicToken", mock.Anything, token).Return(order, nil)
	mockRepo.On("UpdateStatusWithHistory", mock.Anything, order, mock.AnythingOfType("*models.StatusHistory")).Return(nil)

	updated, err := service.ApproveByToken(context.Background(), token, "maria")
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, updated.Status)
	require.Equal(t, models.ApprovalPublicLink, updated.ApprovalChannel)
	require.Equal(t, "maria", updated.ApprovalConfirmedBy)
	require.True(t, updated.PublicTokenRevoked)

	// Replaying the link fails, the order already left waiting_approval
	_, err = service.ApproveByToken(context.Background(), token, "maria")
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestAddPaymentCashComputesChange(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Status: models.StatusInProgress,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockRepo.On("AddPayment", mock.Anything, mock.AnythingOfType("*models.Payment")).Return(nil)

	payment, err := service.AddPayment(context.Background(), order.ID, PaymentInput{
		Method:   models.MethodCash,
		Amount:   decimal.RequireFromString("180.00"),
		Tendered: decimalPtr("200.00"),
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentConfirmed, payment.Status)
	require.NotNil(t, payment.PaidAt)
	require.NotNil(t, payment.Change)
	require.True(t, payment.Change.Equal(decimal.RequireFromString("20.00")))
}

func TestAddPaymentRejectsShortTender(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Status: models.StatusInProgress,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	_, err := service.AddPayment(context.Background(), order.ID, PaymentInput{
		Method:   models.MethodCash,
		Amount:   decimal.RequireFromString("180.00"),
		Tendered: decimalPtr("150.00"),
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	mockRepo.AssertNotCalled(t, "AddPayment", mock.Anything, mock.Anything)
}

func TestAddPaymentRejectsNonPositiveAmount(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	_, err := service.AddPayment(context.Background(), uuid.New(), PaymentInput{
		Method: models.MethodPix,
		Amount: decimal.Zero,
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestAddItemRollsBackOnInsufficientStock(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockParts := new(MockPartRepository)
	service := newTestOrderService(mockRepo, mockParts)

	partID := uuid.New()
	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Number: "20260831-002",
		Status: models.StatusInProgress,
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockRepo.On("AddItem", mock.Anything, order, mock.AnythingOfType("*models.ServiceItem")).Return(nil)
	mockParts.On("ApplyMovement", mock.Anything, mock.AnythingOfType("*models.StockMovement")).Return(models.ErrInsufficientStock)
	mockRepo.On("RemoveItem", mock.Anything, order, mock.AnythingOfType("uuid.UUID")).Return(nil)

	_, err := service.AddItem(context.Background(), order.ID, ItemInput{
		Description: "Brake pad set",
		Category:    models.CategoryPart,
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("90.00"),
		PartID:      &partID,
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "insufficient stock")

	mockRepo.AssertCalled(t, "RemoveItem", mock.Anything, order, mock.AnythingOfType("uuid.UUID"))
}

func TestRemoveItemReturnsConsumedStock(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockParts := new(MockPartRepository)
	service := newTestOrderService(mockRepo, mockParts)

	partID := uuid.New()
	itemID := uuid.New()
	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Number: "20260831-003",
		Status: models.StatusInProgress,
		Items: []models.ServiceItem{
			{
				ID:       itemID,
				PartID:   &partID,
				Quantity: decimal.NewFromInt(2),
				Category: models.CategoryPart,
			},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	mockParts.On("ListOrderMovements", mock.Anything, order.ID).Return([]models.StockMovement{
		{PartID: partID, ItemID: &itemID, Type: models.MovementExit, Quantity: decimal.NewFromInt(2)},
	}, nil)
	mockRepo.On("RemoveItem", mock.Anything, order, itemID).Return(nil)
	mockParts.On("ApplyMovement", mock.Anything, mock.MatchedBy(func(m *models.StockMovement) bool {
		return m.Type == models.MovementReturn && m.PartID == partID && m.Quantity.Equal(decimal.NewFromInt(2))
	})).Return(nil)

	_, err := service.RemoveItem(context.Background(), order.ID, itemID)
	require.NoError(t, err)

	mockParts.AssertExpectations(t)
}

func TestRemoveItemMapsDiscountExceedsTotal(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	itemID := uuid.New()
	order := &models.ServiceOrder{
		ID:       uuid.New(),
		Number:   "20260831-004",
		Status:   models.StatusInProgress,
		Discount: decimal.RequireFromString("50.00"),
		Items: []models.ServiceItem{
			{ID: itemID, Category: models.CategoryLabor, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("80.00")},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	// Dropping the line leaves the gross below the standing discount
	mockRepo.On("RemoveItem", mock.Anything, order, itemID).Return(models.ErrDiscountExceedsTotal)

	_, err := service.RemoveItem(context.Background(), order.ID, itemID)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Contains(t, err.Error(), "discount")
}

func TestItemEditsBlockedAfterDelivery(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	itemID := uuid.New()
	order := &models.ServiceOrder{
		ID:     uuid.New(),
		Number: "20260831-005",
		Status: models.StatusDelivered,
		Items: []models.ServiceItem{
			{ID: itemID, Category: models.CategoryLabor, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("80.00")},
		},
	}
	mockRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	input := ItemInput{
		Description: "brake fluid flush",
		Category:    models.CategoryLabor,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("120.00"),
	}
	_, err := service.UpdateItem(context.Background(), order.ID, itemID, input)
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	_, err = service.RemoveItem(context.Background(), order.ID, itemID)
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	mockRepo.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateRequisitionStatusClosedIsImmutable(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := newTestOrderService(mockRepo, nil)

	orderID := uuid.New()
	reqID := uuid.New()
	mockRepo.On("ListRequisitions", mock.Anything, orderID).Return([]models.PartRequisition{
		{ID: reqID, OrderID: orderID, Status: models.RequisitionReceived},
	}, nil)

	_, err := service.UpdateRequisitionStatus(context.Background(), orderID, reqID, models.RequisitionCancelled)
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	mockRepo.AssertNotCalled(t, "UpdateRequisition", mock.Anything, mock.Anything)
}
