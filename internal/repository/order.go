package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/garageroute/services/workshop/internal/db"
	"example.com/garageroute/services/workshop/internal/models"
)

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status     models.OrderStatus
	CustomerID *uuid.UUID
	VehicleID  *uuid.UUID
	Limit      int
	Offset     int
}

// OrderRepository defines the interface for service order persistence
type OrderRepository interface {
	Create(ctx context.Context, order *models.ServiceOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error)
	GetByNumber(ctx context.Context, number string) (*models.ServiceOrder, error)
	GetByPublicToken(ctx context.Context, token string) (*models.ServiceOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]models.ServiceOrder, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.ServiceOrder, error)
	Save(ctx context.Context, order *models.ServiceOrder) error
	UpdateStatusWithHistory(ctx context.Context, order *models.ServiceOrder, entry *models.StatusHistory) error
	SaveWithHistory(ctx context.Context, order *models.ServiceOrder, entry *models.StatusHistory) error
	AppendHistory(ctx context.Context, entry *models.StatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistory, error)

	AddItem(ctx context.Context, order *models.ServiceOrder, item *models.ServiceItem) error
	UpdateItem(ctx context.Context, order *models.ServiceOrder, item *models.ServiceItem) error
	RemoveItem(ctx context.Context, order *models.ServiceOrder, itemID uuid.UUID) error

	AddPayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error

	CreateRequisition(ctx context.Context, req *models.PartRequisition) error
	UpdateRequisition(ctx context.Context, req *models.PartRequisition) error
	ListRequisitions(ctx context.Context, orderID uuid.UUID) ([]models.PartRequisition, error)
	CountOpenRequisitions(ctx context.Context, orderID uuid.UUID) (int64, error)

	CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
	SumConfirmedPayments(ctx context.Context, since time.Time) (map[models.PaymentMethod]string, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(gdb *gorm.DB) OrderRepository {
	return &orderRepository{db: gdb}
}

// nextNumber allocates the next order number for the day. The sequence row
// is locked for update so concurrent creates never share a number.
func nextNumber(tx *gorm.DB, now time.Time) (string, error) {
	day := now.Format("20060102")

	var seq models.OrderSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("day = ?", day).
		First(&seq).Error
	if db.IsRecordNotFoundError(err) {
		seq = models.OrderSequence{Day: day}
		if err := tx.Create(&seq).Error; err != nil {
			if !db.IsDuplicateKeyError(err) {
				return "", err
			}
			// Another transaction created the row first, lock it instead
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("day = ?", day).
				First(&seq).Error; err != nil {
				return "", err
			}
		}
	} else if err != nil {
		return "", err
	}

	seq.Counter++
	if err := tx.Model(&models.OrderSequence{}).
		Where("day = ?", day).
		Update("counter", seq.Counter).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%03d", day, seq.Counter), nil
}

// Create persists a new order, allocating its number and writing the opening
// history row in the same transaction.
func (r *orderRepository) Create(ctx context.Context, order *models.ServiceOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextNumber(tx, time.Now())
		if err != nil {
			return err
		}
		order.Number = number

		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		if order.Status == "" {
			order.Status = models.StatusReceived
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		entry := &models.StatusHistory{
			ID:       uuid.New(),
			OrderID:  order.ID,
			ToStatus: order.Status,
			Notes:    "order created",
		}
		return tx.Create(entry).Error
	})
}

func (r *orderRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("Customer").
		Preload("Vehicle").
		Where(query, args...).
		First(&order).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByID finds an order by ID with its items, payments, customer and vehicle
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByNumber finds an order by its human-facing number
func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*models.ServiceOrder, error) {
	return r.getOne(ctx, "number = ?", number)
}

// GetByPublicToken finds an order by its public approval token
func (r *orderRepository) GetByPublicToken(ctx context.Context, token string) (*models.ServiceOrder, error) {
	return r.getOne(ctx, "public_token = ?", token)
}

// List returns orders matching the filter, newest first
func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]models.ServiceOrder, error) {
	q := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vehicle").
		Order("created_at DESC")

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.VehicleID != nil {
		q = q.Where("vehicle_id = ?", *filter.VehicleID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var orders []models.ServiceOrder
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOverdue returns open orders whose estimated delivery has passed
func (r *orderRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.ServiceOrder, error) {
	var orders []models.ServiceOrder
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("estimated_delivery IS NOT NULL AND estimated_delivery < ?", now).
		Where("status NOT IN ?", []models.OrderStatus{models.StatusDelivered, models.StatusCanceled}).
		Order("estimated_delivery ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Save persists changes on the order row
func (r *orderRepository) Save(ctx context.Context, order *models.ServiceOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// UpdateStatusWithHistory writes the order's new status and the matching
// history row atomically. The order row is locked for update and its stored
// status must still equal the history entry's from_status, so two racing
// transitions out of the same state cannot both commit.
func (r *orderRepository) UpdateStatusWithHistory(ctx context.Context, order *models.ServiceOrder, entry *models.StatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ServiceOrder
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			Where("id = ?", order.ID).
			First(&current).Error
		if err != nil {
			if db.IsRecordNotFoundError(err) {
				return ErrNotFound
			}
			return err
		}
		if current.Status != entry.FromStatus || !models.CanTransition(current.Status, entry.ToStatus) {
			return ErrStatusConflict
		}

		if err := tx.Omit("Items", "Payments", "History", "Requisitions", "Customer", "Vehicle").
			Save(order).Error; err != nil {
			return err
		}
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.OrderID = order.ID
		return tx.Create(entry).Error
	})
}

// SaveWithHistory persists order changes and a history row in one transaction.
// It does not guard the stored status, status changes go through
// UpdateStatusWithHistory.
func (r *orderRepository) SaveWithHistory(ctx context.Context, order *models.ServiceOrder, entry *models.StatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "Payments", "History", "Requisitions", "Customer", "Vehicle").
			Save(order).Error; err != nil {
			return err
		}
		if entry != nil {
			if entry.ID == uuid.Nil {
				entry.ID = uuid.New()
			}
			entry.OrderID = order.ID
			return tx.Create(entry).Error
		}
		return nil
	})
}

// AppendHistory writes a history row outside a status change
func (r *orderRepository) AppendHistory(ctx context.Context, entry *models.StatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListHistory returns the order's status log, oldest first
func (r *orderRepository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistory, error) {
	var entries []models.StatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// saveTotals writes the order's recomputed totals inside tx.
func saveTotals(tx *gorm.DB, order *models.ServiceOrder, totals models.OrderTotals) error {
	order.LaborTotal = totals.Labor
	order.PartsTotal = totals.Parts
	order.ThirdPartyTotal = totals.ThirdParty
	order.Total = totals.Total
	return tx.Model(&models.ServiceOrder{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"labor_total":       totals.Labor,
			"parts_total":       totals.Parts,
			"third_party_total": totals.ThirdParty,
			"total":             totals.Total,
		}).Error
}

func recomputeTotals(tx *gorm.DB, order *models.ServiceOrder) error {
	var items []models.ServiceItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}
	totals, err := models.ComputeTotals(items, order.Discount)
	if err != nil {
		return err
	}
	order.Items = items
	return saveTotals(tx, order, totals)
}

// AddItem inserts a line item and recomputes the order totals atomically
func (r *orderRepository) AddItem(ctx context.Context, order *models.ServiceOrder, item *models.ServiceItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return recomputeTotals(tx, order)
	})
}

// UpdateItem saves a line item and recomputes the order totals atomically
func (r *orderRepository) UpdateItem(ctx context.Context, order *models.ServiceOrder, item *models.ServiceItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return recomputeTotals(tx, order)
	})
}

// RemoveItem deletes a line item and recomputes the order totals atomically
func (r *orderRepository) RemoveItem(ctx context.Context, order *models.ServiceOrder, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND order_id = ?", itemID, order.ID).
			Delete(&models.ServiceItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return recomputeTotals(tx, order)
	})
}

// AddPayment inserts a payment row
func (r *orderRepository) AddPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

// UpdatePayment saves a payment row
func (r *orderRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// CreateRequisition inserts a part requisition
func (r *orderRepository) CreateRequisition(ctx context.Context, req *models.PartRequisition) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = models.RequisitionPending
	}
	return r.db.WithContext(ctx).Create(req).Error
}

// UpdateRequisition saves a part requisition
func (r *orderRepository) UpdateRequisition(ctx context.Context, req *models.PartRequisition) error {
	return r.db.WithContext(ctx).Save(req).Error
}

// ListRequisitions returns the order's requisitions, oldest first
func (r *orderRepository) ListRequisitions(ctx context.Context, orderID uuid.UUID) ([]models.PartRequisition, error) {
	var reqs []models.PartRequisition
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// CountOpenRequisitions counts requisitions still blocking execution
func (r *orderRepository) CountOpenRequisitions(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PartRequisition{}).
		Where("order_id = ? AND status IN ?", orderID, []models.RequisitionStatus{
			models.RequisitionPending,
			models.RequisitionOrdered,
			models.RequisitionAwaitingDelivery,
		}).
		Count(&count).Error
	return count, err
}

// CountByStatus returns the number of orders per status
func (r *orderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	type row struct {
		Status models.OrderStatus
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.ServiceOrder{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// SumConfirmedPayments returns the confirmed payment volume per method since
// the given time, as decimal strings. Only payments on delivered orders
// count, open work is not revenue yet.
func (r *orderRepository) SumConfirmedPayments(ctx context.Context, since time.Time) (map[models.PaymentMethod]string, error) {
	type row struct {
		Method models.PaymentMethod
		Total  string
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Joins("JOIN service_orders ON service_orders.id = payments.order_id").
		Select("payments.method, COALESCE(SUM(payments.amount), 0)::text as total").
		Where("payments.status = ? AND payments.created_at >= ?", models.PaymentConfirmed, since).
		Where("service_orders.status = ?", models.StatusDelivered).
		Group("payments.method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sums := make(map[models.PaymentMethod]string, len(rows))
	for _, r := range rows {
		sums[r.Method] = r.Total
	}
	return sums, nil
}
