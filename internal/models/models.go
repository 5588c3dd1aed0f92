package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of a service order.
type OrderStatus string

const (
	StatusReceived        OrderStatus = "received"
	StatusDiagnosis       OrderStatus = "diagnosis"
	StatusWaitingApproval OrderStatus = "waiting_approval"
	StatusApproved        OrderStatus = "approved"
	StatusInProgress      OrderStatus = "in_progress"
	StatusAwaitingPart    OrderStatus = "awaiting_part"
	StatusReady           OrderStatus = "ready"
	StatusDelivered       OrderStatus = "delivered"
	StatusCanceled        OrderStatus = "canceled"
)

// transitions lists the reachable statuses from each state. Canceled is a
// terminal state; delivered can only be undone back to ready.
var transitions = map[OrderStatus][]OrderStatus{
	StatusReceived:        {StatusDiagnosis, StatusCanceled},
	StatusDiagnosis:       {StatusWaitingApproval, StatusCanceled},
	StatusWaitingApproval: {StatusApproved, StatusDiagnosis, StatusCanceled},
	StatusApproved:        {StatusInProgress, StatusAwaitingPart, StatusCanceled},
	StatusInProgress:      {StatusAwaitingPart, StatusReady, StatusCanceled},
	StatusAwaitingPart:    {StatusApproved, StatusInProgress, StatusCanceled},
	StatusReady:           {StatusDelivered, StatusInProgress},
	StatusDelivered:       {StatusReady},
	StatusCanceled:        {},
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions are possible.
func IsTerminalStatus(s OrderStatus) bool {
	return len(transitions[s]) == 0
}

// ActiveStatuses are the statuses in which an order still occupies the shop.
func ActiveStatuses() []OrderStatus {
	return []OrderStatus{
		StatusReceived, StatusDiagnosis, StatusWaitingApproval,
		StatusApproved, StatusInProgress, StatusAwaitingPart, StatusReady,
	}
}

// StatusFromString converts a raw string to an OrderStatus, empty when unknown.
func StatusFromString(s string) OrderStatus {
	switch OrderStatus(s) {
	case StatusReceived, StatusDiagnosis, StatusWaitingApproval, StatusApproved,
		StatusInProgress, StatusAwaitingPart, StatusReady, StatusDelivered, StatusCanceled:
		return OrderStatus(s)
	default:
		return ""
	}
}

// OrderPriority ranks how urgent an order is.
type OrderPriority string

const (
	PriorityLow    OrderPriority = "low"
	PriorityNormal OrderPriority = "normal"
	PriorityHigh   OrderPriority = "high"
	PriorityUrgent OrderPriority = "urgent"
)

// ApprovalChannel records how the customer approved the quote.
type ApprovalChannel string

const (
	ApprovalInPerson   ApprovalChannel = "in_person"
	ApprovalPhone      ApprovalChannel = "phone"
	ApprovalWhatsApp   ApprovalChannel = "whatsapp"
	ApprovalEmail      ApprovalChannel = "email"
	ApprovalPublicLink ApprovalChannel = "public_link"
	ApprovalOther      ApprovalChannel = "other"
)

// ItemCategory classifies a billable line on an order.
type ItemCategory string

const (
	CategoryLabor      ItemCategory = "labor"
	CategoryPart       ItemCategory = "part"
	CategoryThirdParty ItemCategory = "third_party"
	CategoryOther      ItemCategory = "other"
)

// Customer is a garage customer.
type Customer struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Name       string         `gorm:"not null" json:"name"`
	DocumentID *string        `gorm:"uniqueIndex" json:"document_id"`
	Phone      string         `json:"phone"`
	Email      string         `json:"email"`
	Address    string         `json:"address"`
	Notes      string         `json:"notes"`
	Vehicles   []Vehicle      `gorm:"foreignKey:CustomerID" json:"-"`
}

// Vehicle belongs to a customer. Plate is unique per customer when present.
type Vehicle struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	CustomerID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_customer_plate" json:"customer_id"`
	Customer   Customer       `gorm:"foreignKey:CustomerID" json:"-"`
	Plate      string         `gorm:"uniqueIndex:idx_customer_plate" json:"plate"`
	Brand      string         `gorm:"not null" json:"brand"`
	Model      string         `gorm:"not null" json:"model"`
	Year       *int           `json:"year"`
	Color      string         `json:"color"`
	VIN        string         `gorm:"column:vin" json:"vin"`
	Mileage    *int           `json:"mileage"`
	Notes      string         `json:"notes"`
}

// ServiceOrder is the work order tracked end to end.
type ServiceOrder struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Number     string         `gorm:"not null;uniqueIndex" json:"number"`
	CustomerID uuid.UUID      `gorm:"type:uuid;not null" json:"customer_id"`
	Customer   Customer       `gorm:"foreignKey:CustomerID" json:"-"`
	VehicleID  uuid.UUID      `gorm:"type:uuid;not null" json:"vehicle_id"`
	Vehicle    Vehicle        `gorm:"foreignKey:VehicleID" json:"-"`

	Title            string        `gorm:"not null;default:'Service Order'" json:"title"`
	IssueDescription string        `json:"issue_description"`
	Status           OrderStatus   `gorm:"not null;default:'received'" json:"status"`
	Priority         OrderPriority `gorm:"not null;default:'normal'" json:"priority"`

	Diagnosis            string     `json:"diagnosis"`
	DiagnosisCompletedAt *time.Time `json:"diagnosis_completed_at"`
	EstimatedDelivery    *time.Time `json:"estimated_delivery"`
	DeliveredAt          *time.Time `json:"delivered_at"`

	LaborTotal      decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"labor_total"`
	PartsTotal      decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"parts_total"`
	ThirdPartyTotal decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"third_party_total"`
	Discount        decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	Total           decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	EstimateTotal   *decimal.Decimal `gorm:"type:decimal(10,2)" json:"estimate_total"`

	ApprovalTotal       *decimal.Decimal `gorm:"type:decimal(10,2)" json:"approval_total"`
	ApprovalChannel     ApprovalChannel  `json:"approval_channel"`
	ApprovalNotes       string           `json:"approval_notes"`
	ApprovalConfirmedAt *time.Time       `json:"approval_confirmed_at"`
	ApprovalConfirmedBy string           `json:"approval_confirmed_by"`

	PublicToken          *string    `gorm:"uniqueIndex" json:"-"`
	PublicTokenCreatedAt *time.Time `json:"-"`
	PublicTokenExpiresAt *time.Time `json:"-"`
	PublicTokenRevoked   bool       `gorm:"not null;default:false" json:"-"`

	ExecutionStartedAt   *time.Time `json:"execution_started_at"`
	ExecutionCompletedAt *time.Time `json:"execution_completed_at"`
	ExecutionNotes       string     `json:"execution_notes"`

	InternalNotes string `json:"internal_notes"`
	CustomerNotes string `json:"customer_notes"`

	Items        []ServiceItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Payments     []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payments"`
	History      []StatusHistory   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
	Requisitions []PartRequisition `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}

// ReferenceTotal is the amount payments are settled against: the approved
// amount when present, then the estimate, then the computed total.
func (o *ServiceOrder) ReferenceTotal() decimal.Decimal {
	if o.ApprovalTotal != nil {
		return *o.ApprovalTotal
	}
	if o.EstimateTotal != nil {
		return *o.EstimateTotal
	}
	return o.Total
}

// TotalPaid sums the confirmed payments attached to the order.
func (o *ServiceOrder) TotalPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range o.Payments {
		if p.Status == PaymentConfirmed {
			paid = paid.Add(p.Amount)
		}
	}
	return paid.Round(2)
}

// Balance is the outstanding amount, never negative.
func (o *ServiceOrder) Balance() decimal.Decimal {
	balance := o.ReferenceTotal().Sub(o.TotalPaid())
	if balance.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return balance.Round(2)
}

// MinimumDeposit is the amount required up front before execution starts.
func (o *ServiceOrder) MinimumDeposit(ratio decimal.Decimal) decimal.Decimal {
	return o.ReferenceTotal().Mul(ratio).Round(2)
}

// DepositSatisfied reports whether confirmed payments cover the deposit.
func (o *ServiceOrder) DepositSatisfied(ratio decimal.Decimal) bool {
	return o.TotalPaid().GreaterThanOrEqual(o.MinimumDeposit(ratio))
}

// PublicTokenExpired reports whether the token passed its expiry.
func (o *ServiceOrder) PublicTokenExpired(now time.Time) bool {
	return o.PublicToken != nil &&
		o.PublicTokenExpiresAt != nil &&
		now.After(*o.PublicTokenExpiresAt)
}

// PublicTokenValid reports whether the public approval link is usable: a
// live, unexpired token on an order still waiting for approval.
func (o *ServiceOrder) PublicTokenValid(now time.Time) bool {
	if o.PublicToken == nil || o.PublicTokenRevoked {
		return false
	}
	if o.PublicTokenExpired(now) {
		return false
	}
	return o.Status == StatusWaitingApproval
}

// OrderTotals is the per-category breakdown of an order's line items.
type OrderTotals struct {
	Labor      decimal.Decimal
	Parts      decimal.Decimal
	ThirdParty decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

// ErrDiscountExceedsTotal is returned when a discount is larger than the sum
// of the line items it applies to.
var ErrDiscountExceedsTotal = errors.New("discount exceeds the pre-discount total")

// ComputeTotals sums line items by category and applies the discount.
// The discount must not exceed the pre-discount sum.
func ComputeTotals(items []ServiceItem, discount decimal.Decimal) (OrderTotals, error) {
	if discount.IsNegative() {
		return OrderTotals{}, errors.New("discount cannot be negative")
	}
	totals := OrderTotals{
		Labor:      decimal.Zero,
		Parts:      decimal.Zero,
		ThirdParty: decimal.Zero,
		Discount:   discount.Round(2),
	}
	for _, item := range items {
		line := item.Total()
		switch item.Category {
		case CategoryLabor:
			totals.Labor = totals.Labor.Add(line)
		case CategoryPart:
			totals.Parts = totals.Parts.Add(line)
		default:
			totals.ThirdParty = totals.ThirdParty.Add(line)
		}
	}
	gross := totals.Labor.Add(totals.Parts).Add(totals.ThirdParty)
	if discount.GreaterThan(gross) {
		return OrderTotals{}, ErrDiscountExceedsTotal
	}
	totals.Labor = totals.Labor.Round(2)
	totals.Parts = totals.Parts.Round(2)
	totals.ThirdParty = totals.ThirdParty.Round(2)
	totals.Total = gross.Sub(discount).Round(2)
	return totals, nil
}

// ServiceItem is one billable line belonging to exactly one order.
type ServiceItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`

	Description string          `gorm:"not null" json:"description"`
	Category    ItemCategory    `gorm:"not null;default:'labor'" json:"category"`
	Quantity    decimal.Decimal `gorm:"type:decimal(7,3);not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"unit_price"`
	Notes       string          `json:"notes"`

	// PartID links part-category items to stock; nil for off-catalog parts.
	PartID *uuid.UUID `gorm:"type:uuid" json:"part_id"`
	Part   *Part      `gorm:"foreignKey:PartID" json:"-"`
}

// Total is quantity times unit price, rounded to cents.
func (i *ServiceItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Round(2)
}

// PaymentMethod is how money was received.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodPix          PaymentMethod = "pix"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOther        PaymentMethod = "other"
)

// PaymentStatus is the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is a money-received record tied to an order. Cash payments also
// carry the amount tendered and the change due.
type Payment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`

	Method     PaymentMethod    `gorm:"not null;default:'cash'" json:"method"`
	Amount     decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status     PaymentStatus    `gorm:"not null;default:'pending'" json:"status"`
	PaidAt     *time.Time       `json:"paid_at"`
	Tendered   *decimal.Decimal `gorm:"type:decimal(10,2)" json:"tendered"`
	Change     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"change"`
	Notes      string           `json:"notes"`
	ReceivedBy string           `json:"received_by"`
}

// StatusHistory is an append-only log row written with every status change.
type StatusHistory struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	OrderID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `gorm:"not null" json:"to_status"`
	ChangedBy  string      `json:"changed_by"`
	Notes      string      `json:"notes"`
}

// OrderSequence is the per-day counter behind order numbers. Rows are locked
// for update while the counter is incremented so numbers are never duplicated
// under concurrent creation.
type OrderSequence struct {
	Day       string    `gorm:"primaryKey;size:8" json:"day"`
	Counter   int       `gorm:"not null;default:0" json:"counter"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppointmentStatus is the state of a scheduled visit.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentAttended  AppointmentStatus = "attended"
	AppointmentMissed    AppointmentStatus = "missed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a scheduled customer visit, optionally tied to a vehicle.
type Appointment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	CustomerID uuid.UUID      `gorm:"type:uuid;not null" json:"customer_id"`
	Customer   Customer       `gorm:"foreignKey:CustomerID" json:"-"`
	VehicleID  *uuid.UUID     `gorm:"type:uuid" json:"vehicle_id"`

	ScheduledAt  time.Time         `gorm:"not null;index" json:"scheduled_at"`
	Status       AppointmentStatus `gorm:"not null;default:'scheduled'" json:"status"`
	Service      string            `json:"service"`
	Notes        string            `json:"notes"`
	ReminderSent bool              `gorm:"not null;default:false" json:"reminder_sent"`
}

// SetupModels configures GORM models and runs migrations.
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Customer{},
		&Vehicle{},
		&ServiceOrder{},
		&ServiceItem{},
		&Payment{},
		&StatusHistory{},
		&OrderSequence{},
		&PartCategory{},
		&Supplier{},
		&Part{},
		&StockMovement{},
		&PartRequisition{},
		&Appointment{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}
	return nil
}
