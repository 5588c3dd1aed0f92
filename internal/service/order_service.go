package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"example.com/garageroute/services/workshop/internal/cache"
	"example.com/garageroute/services/workshop/internal/messaging"
	"example.com/garageroute/services/workshop/internal/metrics"
	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
	"example.com/garageroute/services/workshop/internal/tracing"
)

// OrderIndexer indexes orders for back-office search.
type OrderIndexer interface {
	IndexOrder(ctx context.Context, order *models.ServiceOrder) error
}

// OrderService handles service order business logic
type OrderService struct {
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	vehicleRepo  repository.VehicleRepository
	partRepo     repository.PartRepository
	cache        *cache.RedisCache
	indexer      OrderIndexer
	publisher    messaging.Publisher
	tracer       tracing.Tracer
	collector    *metrics.Collector

	depositRatio decimal.Decimal
	tokenTTL     time.Duration
}

// NewOrderService creates a new order service
func NewOrderService(
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	vehicleRepo repository.VehicleRepository,
	partRepo repository.PartRepository,
	redisCache *cache.RedisCache,
	indexer OrderIndexer,
	publisher messaging.Publisher,
	tracer tracing.Tracer,
	depositRatio decimal.Decimal,
	tokenTTL time.Duration,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		vehicleRepo:  vehicleRepo,
		partRepo:     partRepo,
		cache:        redisCache,
		indexer:      indexer,
		publisher:    publisher,
		tracer:       tracer,
		collector:    metrics.Default(),
		depositRatio: depositRatio,
		tokenTTL:     tokenTTL,
	}
}

// CreateOrderInput carries the fields accepted when opening an order.
type CreateOrderInput struct {
	CustomerID        uuid.UUID
	VehicleID         uuid.UUID
	Title             string
	IssueDescription  string
	Priority          models.OrderPriority
	EstimatedDelivery *time.Time
	EstimateTotal     *decimal.Decimal
	InternalNotes     string
}

// CreateOrder opens a new service order in the received status.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.ServiceOrder, error) {
	txn := s.tracer.StartTransaction("create-order")
	defer s.tracer.EndTransaction(txn)

	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("customer %s not found", input.CustomerID)
		}
		return nil, errors.Wrap(err, "failed to load customer")
	}

	vehicle, err := s.vehicleRepo.GetByID(ctx, input.VehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("vehicle %s not found", input.VehicleID)
		}
		return nil, errors.Wrap(err, "failed to load vehicle")
	}
	if vehicle.CustomerID != customer.ID {
		return nil, NewValidationError("vehicle does not belong to the customer")
	}

	order := &models.ServiceOrder{
		ID:                uuid.New(),
		CustomerID:        customer.ID,
		VehicleID:         vehicle.ID,
		IssueDescription:  input.IssueDescription,
		Status:            models.StatusReceived,
		EstimatedDelivery: input.EstimatedDelivery,
		EstimateTotal:     input.EstimateTotal,
		InternalNotes:     input.InternalNotes,
	}
	if input.Title != "" {
		order.Title = input.Title
	} else {
		order.Title = "Service Order"
	}
	if input.Priority != "" {
		order.Priority = input.Priority
	} else {
		order.Priority = models.PriorityNormal
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to create order")
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("number", order.Number).
		Str("customer", customer.Name).
		Msg("order created")

	s.collector.IncrementCounter("orders.created")
	order.Customer = *customer
	order.Vehicle = *vehicle
	s.afterWrite(ctx, order, messaging.Event{
		Type:    messaging.EventOrderStatusChanged,
		Status:  string(order.Status),
		Message: "order created",
	})

	return order, nil
}

// GetOrder loads an order with its items, payments, customer and vehicle
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// GetOrderByNumber loads an order by its human-facing number
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*models.ServiceOrder, error) {
	return s.orderRepo.GetByNumber(ctx, number)
}

// ListOrders returns orders matching the filter
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.ServiceOrder, error) {
	return s.orderRepo.List(ctx, filter)
}

// GetHistory returns an order's status log
func (s *OrderService) GetHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistory, error) {
	return s.orderRepo.ListHistory(ctx, orderID)
}

// newPublicToken mints a fresh approval token on the order.
func (s *OrderService) newPublicToken(order *models.ServiceOrder, now time.Time) {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	expires := now.Add(s.tokenTTL)
	order.PublicToken = &token
	order.PublicTokenCreatedAt = &now
	order.PublicTokenExpiresAt = &expires
	order.PublicTokenRevoked = false
}

// Transition moves an order to a new status, enforcing the gating rules and
// appending one history row. Invalid transitions leave the order unchanged.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, to models.OrderStatus, actor, note string) (*models.ServiceOrder, error) {
	txn := s.tracer.StartTransaction("order-transition")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "order_id", orderID.String())
	s.tracer.AddAttribute(txn, "to_status", string(to))

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.applyTransition(ctx, order, to, actor, note, time.Now()); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	return order, nil
}

// applyTransition mutates the loaded order and persists it with its history
// row. Callers may pre-set approval metadata before calling.
func (s *OrderService) applyTransition(ctx context.Context, order *models.ServiceOrder, to models.OrderStatus, actor, note string, now time.Time) error {
	from := order.Status
	if !models.CanTransition(from, to) {
		return NewValidationError("cannot move order from %s to %s", from, to)
	}

	switch to {
	case models.StatusWaitingApproval:
		if len(order.Items) == 0 && order.EstimateTotal == nil {
			return NewValidationError("order needs items or an estimate before requesting approval")
		}
		if !order.PublicTokenValid(now) {
			s.newPublicToken(order, now)
		}

	case models.StatusApproved:
		if from == models.StatusWaitingApproval {
			if order.ApprovalConfirmedAt == nil {
				confirmed := now
				order.ApprovalConfirmedAt = &confirmed
				order.ApprovalConfirmedBy = actor
			}
			if order.ApprovalChannel == "" {
				order.ApprovalChannel = models.ApprovalInPerson
			}
			if order.ApprovalTotal == nil {
				total := order.ReferenceTotal()
				order.ApprovalTotal = &total
			}
			order.PublicTokenRevoked = true
		}

	case models.StatusInProgress:
		if from == models.StatusApproved || from == models.StatusAwaitingPart {
			if !order.DepositSatisfied(s.depositRatio) {
				return NewValidationError(
					"deposit of %s required before work starts, %s paid",
					order.MinimumDeposit(s.depositRatio), order.TotalPaid(),
				)
			}
			open, err := s.orderRepo.CountOpenRequisitions(ctx, order.ID)
			if err != nil {
				return errors.Wrap(err, "failed to count open requisitions")
			}
			if open > 0 {
				return NewValidationError("%d part requisition(s) still open", open)
			}
		}
		if order.ExecutionStartedAt == nil {
			started := now
			order.ExecutionStartedAt = &started
		}

	case models.StatusReady:
		if order.ExecutionCompletedAt == nil {
			completed := now
			order.ExecutionCompletedAt = &completed
		}

	case models.StatusDelivered:
		if balance := order.Balance(); balance.IsPositive() {
			return NewValidationError("outstanding balance of %s must be settled before delivery", balance)
		}
		delivered := now
		order.DeliveredAt = &delivered

	case models.StatusDiagnosis:
		if from == models.StatusWaitingApproval {
			// Quote went back for rework, the old link must stop working
			order.PublicTokenRevoked = true
		}

	case models.StatusCanceled:
		order.PublicTokenRevoked = true
	}

	order.Status = to
	entry := &models.StatusHistory{
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actor,
		Notes:      note,
	}
	if err := s.orderRepo.UpdateStatusWithHistory(ctx, order, entry); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return NewValidationError("order is no longer %s, reload and retry", from)
		}
		return errors.Wrap(err, "failed to persist status change")
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor).
		Msg("order status changed")

	s.collector.RecordStatusTransition(string(to))
	s.afterWrite(ctx, order, messaging.Event{
		Type:    messaging.EventOrderStatusChanged,
		Status:  string(to),
		Message: note,
	})
	return nil
}

// ApproveInput carries approval metadata recorded by staff.
type ApproveInput struct {
	ApprovedBy string
	Amount     *decimal.Decimal
	Channel    models.ApprovalChannel
	Notes      string
}

// Approve confirms the quote and moves the order to approved.
func (s *OrderService) Approve(ctx context.Context, orderID uuid.UUID, input ApproveInput) (*models.ServiceOrder, error) {
	if input.ApprovedBy == "" {
		return nil, NewValidationError("approver name is required")
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusWaitingApproval {
		return nil, NewValidationError("order is %s, only orders waiting approval can be approved", order.Status)
	}

	now := time.Now()
	order.ApprovalConfirmedAt = &now
	order.ApprovalConfirmedBy = input.ApprovedBy
	order.ApprovalNotes = input.Notes
	if input.Channel != "" {
		order.ApprovalChannel = input.Channel
	} else {
		order.ApprovalChannel = models.ApprovalInPerson
	}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return nil, NewValidationError("approval amount cannot be negative")
		}
		order.ApprovalTotal = input.Amount
	} else {
		total := order.ReferenceTotal()
		order.ApprovalTotal = &total
	}

	if err := s.applyTransition(ctx, order, models.StatusApproved, input.ApprovedBy, input.Notes, now); err != nil {
		return nil, err
	}

	s.publish(ctx, order, messaging.Event{
		Type:    messaging.EventOrderApproved,
		Status:  string(order.Status),
		Message: "quote approved by " + input.ApprovedBy,
	})
	return order, nil
}

// Reject declines the quote and cancels the order.
func (s *OrderService) Reject(ctx context.Context, orderID uuid.UUID, actor, reason string) (*models.ServiceOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusWaitingApproval {
		return nil, NewValidationError("order is %s, only orders waiting approval can be rejected", order.Status)
	}

	note := reason
	if note == "" {
		note = "quote rejected"
	}
	if err := s.applyTransition(ctx, order, models.StatusCanceled, actor, note, time.Now()); err != nil {
		return nil, err
	}

	s.publish(ctx, order, messaging.Event{
		Type:    messaging.EventOrderRejected,
		Status:  string(order.Status),
		Message: note,
	})
	return order, nil
}

// GetOrderByToken resolves a public approval link. The first access after
// expiry revokes the token and appends a single history note.
func (s *OrderService) GetOrderByToken(ctx context.Context, token string) (*models.ServiceOrder, error) {
	order, err := s.orderRepo.GetByPublicToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if order.PublicTokenExpired(now) && !order.PublicTokenRevoked {
		order.PublicTokenRevoked = true
		entry := &models.StatusHistory{
			FromStatus: order.Status,
			ToStatus:   order.Status,
			Notes:      "public link expired",
		}
		if err := s.orderRepo.SaveWithHistory(ctx, order, entry); err != nil {
			return nil, errors.Wrap(err, "failed to revoke expired token")
		}
		return nil, NewValidationError("approval link expired")
	}

	if !order.PublicTokenValid(now) {
		return nil, NewValidationError("approval link is no longer valid")
	}
	return order, nil
}

// ApproveByToken approves the quote through the public link. The token is
// single use, replayed requests fail validation.
func (s *OrderService) ApproveByToken(ctx context.Context, token, approverName string) (*models.ServiceOrder, error) {
	if approverName == "" {
		return nil, NewValidationError("approver name is required")
	}

	order, err := s.GetOrderByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order.ApprovalConfirmedAt = &now
	order.ApprovalConfirmedBy = approverName
	order.ApprovalChannel = models.ApprovalPublicLink
	total := order.ReferenceTotal()
	order.ApprovalTotal = &total

	if err := s.applyTransition(ctx, order, models.StatusApproved, approverName, "approved via public link", now); err != nil {
		return nil, err
	}

	s.publish(ctx, order, messaging.Event{
		Type:    messaging.EventOrderApproved,
		Status:  string(order.Status),
		Message: "quote approved via public link by " + approverName,
	})
	return order, nil
}

// RejectByToken declines the quote through the public link.
func (s *OrderService) RejectByToken(ctx context.Context, token, name, reason string) (*models.ServiceOrder, error) {
	order, err := s.GetOrderByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	note := "quote rejected via public link"
	if reason != "" {
		note += ": " + reason
	}
	if err := s.applyTransition(ctx, order, models.StatusCanceled, name, note, time.Now()); err != nil {
		return nil, err
	}

	s.publish(ctx, order, messaging.Event{
		Type:    messaging.EventOrderRejected,
		Status:  string(order.Status),
		Message: note,
	})
	return order, nil
}

// UpdateOrderInput carries the editable order fields.
type UpdateOrderInput struct {
	Title             *string
	IssueDescription  *string
	Diagnosis         *string
	Priority          *models.OrderPriority
	EstimatedDelivery *time.Time
	EstimateTotal     *decimal.Decimal
	Discount          *decimal.Decimal
	InternalNotes     *string
	CustomerNotes     *string
	ExecutionNotes    *string
}

// UpdateOrder edits order fields. Changing the discount revalidates and
// recomputes the persisted totals.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID uuid.UUID, input UpdateOrderInput) (*models.ServiceOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) {
		return nil, NewValidationError("canceled orders cannot be edited")
	}

	if input.Title != nil {
		order.Title = *input.Title
	}
	if input.IssueDescription != nil {
		order.IssueDescription = *input.IssueDescription
	}
	if input.Diagnosis != nil {
		order.Diagnosis = *input.Diagnosis
		if order.DiagnosisCompletedAt == nil && *input.Diagnosis != "" {
			now := time.Now()
			order.DiagnosisCompletedAt = &now
		}
	}
	if input.Priority != nil {
		order.Priority = *input.Priority
	}
	if input.EstimatedDelivery != nil {
		order.EstimatedDelivery = input.EstimatedDelivery
	}
	if input.EstimateTotal != nil {
		order.EstimateTotal = input.EstimateTotal
	}
	if input.InternalNotes != nil {
		order.InternalNotes = *input.InternalNotes
	}
	if input.CustomerNotes != nil {
		order.CustomerNotes = *input.CustomerNotes
	}
	if input.ExecutionNotes != nil {
		order.ExecutionNotes = *input.ExecutionNotes
	}

	if input.Discount != nil {
		totals, err := models.ComputeTotals(order.Items, *input.Discount)
		if err != nil {
			if errors.Is(err, models.ErrDiscountExceedsTotal) {
				return nil, NewValidationError("discount exceeds order total")
			}
			return nil, NewValidationError("%s", err.Error())
		}
		order.Discount = totals.Discount
		order.LaborTotal = totals.Labor
		order.PartsTotal = totals.Parts
		order.ThirdPartyTotal = totals.ThirdParty
		order.Total = totals.Total
	}

	if err := s.orderRepo.SaveWithHistory(ctx, order, nil); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	s.afterWrite(ctx, order, messaging.Event{})
	return order, nil
}

// ItemInput carries a billable line being added or edited.
type ItemInput struct {
	Description string
	Category    models.ItemCategory
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Notes       string
	PartID      *uuid.UUID
	// SkipStockMovement suppresses the automatic exit movement for
	// part-category items that reference stock.
	SkipStockMovement bool
}

func validateItemInput(input ItemInput) error {
	if strings.TrimSpace(input.Description) == "" {
		return NewValidationError("item description is required")
	}
	if !input.Quantity.IsPositive() {
		return NewValidationError("item quantity must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return NewValidationError("item unit price cannot be negative")
	}
	switch input.Category {
	case models.CategoryLabor, models.CategoryPart, models.CategoryThirdParty, models.CategoryOther:
	default:
		return NewValidationError("unknown item category %q", input.Category)
	}
	if input.PartID != nil && input.Category != models.CategoryPart {
		return NewValidationError("only part items may reference stock")
	}
	return nil
}

// AddItem appends a billable line, recomputes the totals and, for part items
// tied to stock, writes the exit movement.
func (s *OrderService) AddItem(ctx context.Context, orderID uuid.UUID, input ItemInput) (*models.ServiceOrder, error) {
	if err := validateItemInput(input); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) || order.Status == models.StatusDelivered {
		return nil, NewValidationError("items cannot be added to a %s order", order.Status)
	}

	item := &models.ServiceItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Description: input.Description,
		Category:    input.Category,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		Notes:       input.Notes,
		PartID:      input.PartID,
	}

	if err := s.orderRepo.AddItem(ctx, order, item); err != nil {
		if errors.Is(err, models.ErrDiscountExceedsTotal) {
			return nil, NewValidationError("discount exceeds order total")
		}
		return nil, errors.Wrap(err, "failed to add item")
	}

	if input.PartID != nil && !input.SkipStockMovement {
		movement := &models.StockMovement{
			PartID:    *input.PartID,
			Type:      models.MovementExit,
			Quantity:  input.Quantity,
			OrderID:   &order.ID,
			ItemID:    &item.ID,
			Reference: order.Number,
			Notes:     "consumed by order " + order.Number,
		}
		if err := s.partRepo.ApplyMovement(ctx, movement); err != nil {
			// Undo the line so billing and stock stay consistent
			if rmErr := s.orderRepo.RemoveItem(ctx, order, item.ID); rmErr != nil {
				log.Error().Err(rmErr).
					Str("order_id", order.ID.String()).
					Str("item_id", item.ID.String()).
					Msg("failed to roll back item after stock error")
			}
			if errors.Is(err, models.ErrInsufficientStock) {
				return nil, NewValidationError("insufficient stock for part")
			}
			return nil, errors.Wrap(err, "failed to register stock movement")
		}
		s.collector.RecordStockMovement(string(models.MovementExit))
	}

	s.afterWrite(ctx, order, messaging.Event{})
	return s.orderRepo.GetByID(ctx, order.ID)
}

// UpdateItem edits a billable line and recomputes the totals. Stock is not
// readjusted, corrections go through explicit movements.
func (s *OrderService) UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, input ItemInput) (*models.ServiceOrder, error) {
	if err := validateItemInput(input); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) || order.Status == models.StatusDelivered {
		return nil, NewValidationError("items cannot be edited on a %s order", order.Status)
	}

	var item *models.ServiceItem
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, repository.ErrNotFound
	}

	item.Description = input.Description
	item.Category = input.Category
	item.Quantity = input.Quantity
	item.UnitPrice = input.UnitPrice
	item.Notes = input.Notes

	if err := s.orderRepo.UpdateItem(ctx, order, item); err != nil {
		if errors.Is(err, models.ErrDiscountExceedsTotal) {
			return nil, NewValidationError("discount exceeds order total")
		}
		return nil, errors.Wrap(err, "failed to update item")
	}

	s.afterWrite(ctx, order, messaging.Event{})
	return s.orderRepo.GetByID(ctx, order.ID)
}

// RemoveItem deletes a billable line. Part items that consumed stock get a
// compensating return movement.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.ServiceOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) || order.Status == models.StatusDelivered {
		return nil, NewValidationError("items cannot be removed from a %s order", order.Status)
	}

	var item *models.ServiceItem
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, repository.ErrNotFound
	}

	var hadExit bool
	if item.PartID != nil {
		movements, err := s.partRepo.ListOrderMovements(ctx, order.ID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list order movements")
		}
		for _, m := range movements {
			if m.ItemID != nil && *m.ItemID == itemID && m.Type == models.MovementExit {
				hadExit = true
				break
			}
		}
	}

	if err := s.orderRepo.RemoveItem(ctx, order, itemID); err != nil {
		if errors.Is(err, models.ErrDiscountExceedsTotal) {
			return nil, NewValidationError("discount exceeds order total")
		}
		return nil, errors.Wrap(err, "failed to remove item")
	}

	if hadExit {
		movement := &models.StockMovement{
			PartID:    *item.PartID,
			Type:      models.MovementReturn,
			Quantity:  item.Quantity,
			OrderID:   &order.ID,
			ItemID:    &itemID,
			Reference: order.Number,
			Notes:     "item removed from order " + order.Number,
		}
		if err := s.partRepo.ApplyMovement(ctx, movement); err != nil {
			log.Error().Err(err).
				Str("order_id", order.ID.String()).
				Str("item_id", itemID.String()).
				Msg("failed to return stock after item removal")
		} else {
			s.collector.RecordStockMovement(string(models.MovementReturn))
		}
	}

	s.afterWrite(ctx, order, messaging.Event{})
	return s.orderRepo.GetByID(ctx, order.ID)
}

// PaymentInput carries a money-received record.
type PaymentInput struct {
	Method     models.PaymentMethod
	Amount     decimal.Decimal
	Tendered   *decimal.Decimal
	Pending    bool
	ReceivedBy string
	Notes      string
}

// AddPayment registers a payment against the order. Cash payments validate
// the tendered amount and compute change.
func (s *OrderService) AddPayment(ctx context.Context, orderID uuid.UUID, input PaymentInput) (*models.Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, NewValidationError("payment amount must be positive")
	}
	switch input.Method {
	case models.MethodCash, models.MethodCard, models.MethodPix, models.MethodBankTransfer, models.MethodOther:
	default:
		return nil, NewValidationError("unknown payment method %q", input.Method)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) {
		return nil, NewValidationError("payments cannot be added to a %s order", order.Status)
	}

	payment := &models.Payment{
		ID:         uuid.New(),
		OrderID:    order.ID,
		Method:     input.Method,
		Amount:     input.Amount.Round(2),
		Status:     models.PaymentConfirmed,
		ReceivedBy: input.ReceivedBy,
		Notes:      input.Notes,
	}
	if input.Pending {
		payment.Status = models.PaymentPending
	} else {
		now := time.Now()
		payment.PaidAt = &now
	}

	if input.Method == models.MethodCash && input.Tendered != nil {
		if input.Tendered.LessThan(payment.Amount) {
			return nil, NewValidationError("tendered amount is less than the payment amount")
		}
		tendered := input.Tendered.Round(2)
		change := tendered.Sub(payment.Amount)
		payment.Tendered = &tendered
		payment.Change = &change
	}

	if err := s.orderRepo.AddPayment(ctx, payment); err != nil {
		return nil, errors.Wrap(err, "failed to add payment")
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("method", string(payment.Method)).
		Str("amount", payment.Amount.String()).
		Msg("payment registered")

	s.collector.RecordPayment(string(payment.Method))
	s.afterWrite(ctx, order, messaging.Event{})
	return payment, nil
}

// ConfirmPayment marks a pending payment as confirmed, stamping paid_at when
// empty.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, paymentID uuid.UUID) (*models.Payment, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	for i := range order.Payments {
		if order.Payments[i].ID == paymentID {
			payment = &order.Payments[i]
			break
		}
	}
	if payment == nil {
		return nil, repository.ErrNotFound
	}
	if payment.Status == models.PaymentCancelled {
		return nil, NewValidationError("cancelled payments cannot be confirmed")
	}

	payment.Status = models.PaymentConfirmed
	if payment.PaidAt == nil {
		now := time.Now()
		payment.PaidAt = &now
	}
	if err := s.orderRepo.UpdatePayment(ctx, payment); err != nil {
		return nil, errors.Wrap(err, "failed to confirm payment")
	}

	s.afterWrite(ctx, order, messaging.Event{})
	return payment, nil
}

// RequisitionInput carries a part request for an order.
type RequisitionInput struct {
	Description string
	Quantity    decimal.Decimal
	PartID      *uuid.UUID
	SupplierID  *uuid.UUID
	ExpectedAt  *time.Time
	Notes       string
}

// CreateRequisition opens a part requisition on the order.
func (s *OrderService) CreateRequisition(ctx context.Context, orderID uuid.UUID, input RequisitionInput) (*models.PartRequisition, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, NewValidationError("requisition description is required")
	}
	if input.Quantity.IsZero() {
		input.Quantity = decimal.NewFromInt(1)
	}
	if input.Quantity.IsNegative() {
		return nil, NewValidationError("requisition quantity must be positive")
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) || order.Status == models.StatusDelivered {
		return nil, NewValidationError("requisitions cannot be added to a %s order", order.Status)
	}

	req := &models.PartRequisition{
		ID:          uuid.New(),
		OrderID:     order.ID,
		PartID:      input.PartID,
		Description: input.Description,
		Quantity:    input.Quantity,
		Status:      models.RequisitionPending,
		SupplierID:  input.SupplierID,
		ExpectedAt:  input.ExpectedAt,
		Notes:       input.Notes,
	}
	if err := s.orderRepo.CreateRequisition(ctx, req); err != nil {
		return nil, errors.Wrap(err, "failed to create requisition")
	}
	return req, nil
}

// UpdateRequisitionStatus advances a requisition through its procurement
// states, stamping the received time when delivery completes.
func (s *OrderService) UpdateRequisitionStatus(ctx context.Context, orderID, reqID uuid.UUID, status models.RequisitionStatus) (*models.PartRequisition, error) {
	switch status {
	case models.RequisitionPending, models.RequisitionOrdered, models.RequisitionAwaitingDelivery,
		models.RequisitionReceived, models.RequisitionCancelled:
	default:
		return nil, NewValidationError("unknown requisition status %q", status)
	}

	reqs, err := s.orderRepo.ListRequisitions(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var req *models.PartRequisition
	for i := range reqs {
		if reqs[i].ID == reqID {
			req = &reqs[i]
			break
		}
	}
	if req == nil {
		return nil, repository.ErrNotFound
	}
	if !req.Status.Open() {
		return nil, NewValidationError("requisition is already %s", req.Status)
	}

	req.Status = status
	if status == models.RequisitionReceived && req.ReceivedAt == nil {
		now := time.Now()
		req.ReceivedAt = &now
	}
	if err := s.orderRepo.UpdateRequisition(ctx, req); err != nil {
		return nil, errors.Wrap(err, "failed to update requisition")
	}
	return req, nil
}

// ListRequisitions returns an order's part requisitions
func (s *OrderService) ListRequisitions(ctx context.Context, orderID uuid.UUID) ([]models.PartRequisition, error) {
	return s.orderRepo.ListRequisitions(ctx, orderID)
}

// NotifyOverdueOrders publishes an overdue event for every open order whose
// estimated delivery has passed. Used by the worker's deadline watch job.
func (s *OrderService) NotifyOverdueOrders(ctx context.Context) (int, error) {
	orders, err := s.orderRepo.ListOverdue(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to list overdue orders")
	}

	for i := range orders {
		order := &orders[i]
		s.publish(ctx, order, messaging.Event{
			Type:    messaging.EventOrderOverdue,
			Status:  string(order.Status),
			Message: "order " + order.Number + " is past its estimated delivery",
		})
	}
	if len(orders) > 0 {
		log.Warn().Int("count", len(orders)).Msg("overdue orders flagged")
	}
	return len(orders), nil
}

// publish sends an event about the order fire-and-forget.
func (s *OrderService) publish(ctx context.Context, order *models.ServiceOrder, event messaging.Event) {
	if s.publisher == nil || event.Type == "" {
		return
	}
	event.OrderID = order.ID.String()
	event.OrderNumber = order.Number
	event.CustomerName = order.Customer.Name
	event.CustomerEmail = order.Customer.Email
	event.CustomerPhone = order.Customer.Phone
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event")
	}
}

// afterWrite refreshes the search index, drops stale cache entries and
// optionally publishes an event. Failures are logged, never propagated.
func (s *OrderService) afterWrite(ctx context.Context, order *models.ServiceOrder, event messaging.Event) {
	s.publish(ctx, order, event)

	if s.indexer != nil {
		if err := s.indexer.IndexOrder(ctx, order); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to index order")
		}
	}

	if s.cache != nil {
		keys := []string{cache.OrderCacheKey(order.ID), cache.DashboardStatsKey}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate cache")
		}
	}
}
