package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartCategory groups stock parts (filters, brakes, fluids, ...).
type PartCategory struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null;uniqueIndex" json:"name"`
	Description string         `json:"description"`
}

// Supplier is a part vendor.
type Supplier struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Contact   string         `json:"contact"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Notes     string         `json:"notes"`
}

// Part is an inventory item. Quantity is only mutated through a
// StockMovement written in the same transaction.
type Part struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Code       string         `gorm:"not null;uniqueIndex" json:"code"`
	Name       string         `gorm:"not null" json:"name"`
	CategoryID *uuid.UUID     `gorm:"type:uuid" json:"category_id"`
	Category   *PartCategory  `gorm:"foreignKey:CategoryID" json:"-"`
	SupplierID *uuid.UUID     `gorm:"type:uuid" json:"supplier_id"`
	Supplier   *Supplier      `gorm:"foreignKey:SupplierID" json:"-"`

	Description      string `json:"description"`
	ManufacturerCode string `json:"manufacturer_code"`
	Barcode          string `json:"barcode"`
	Location         string `json:"location"`
	Unit             string `gorm:"not null;default:'unit'" json:"unit"`
	Active           bool   `gorm:"not null;default:true" json:"active"`

	Quantity    decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0" json:"quantity"`
	MinQuantity decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0" json:"min_quantity"`
	MaxQuantity decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0" json:"max_quantity"`

	CostPrice decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"cost_price"`
	SalePrice decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"sale_price"`
}

// Margin is the markup percentage over the cost price, zero when cost is zero.
func (p *Part) Margin() decimal.Decimal {
	if p.CostPrice.IsZero() {
		return decimal.Zero
	}
	return p.SalePrice.Sub(p.CostPrice).
		Div(p.CostPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// BelowMinimum reports whether on-hand stock fell to the reorder threshold.
func (p *Part) BelowMinimum() bool {
	return p.Quantity.LessThanOrEqual(p.MinQuantity)
}

// Critical reports whether on-hand stock fell to half the reorder threshold.
func (p *Part) Critical() bool {
	half := p.MinQuantity.Div(decimal.NewFromInt(2))
	return p.Quantity.LessThanOrEqual(half)
}

// MovementType is the kind of stock movement.
type MovementType string

const (
	MovementEntry      MovementType = "entry"
	MovementExit       MovementType = "exit"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
	MovementLoss       MovementType = "loss"
	MovementTransfer   MovementType = "transfer"
)

// MovementTypeFromString converts a raw string to a MovementType, empty when
// unknown.
func MovementTypeFromString(s string) MovementType {
	switch MovementType(s) {
	case MovementEntry, MovementExit, MovementAdjustment,
		MovementReturn, MovementLoss, MovementTransfer:
		return MovementType(s)
	default:
		return ""
	}
}

// ErrInsufficientStock is returned when an outbound movement asks for more
// than is on hand.
var ErrInsufficientStock = errors.New("insufficient stock for movement")

// Apply computes the resulting quantity of applying a movement of this type
// to the given on-hand quantity. Entry and return add, exit and loss subtract
// (rejecting overdrafts before any mutation), adjustment sets an absolute
// value and transfer applies the caller's signed delta.
func (t MovementType) Apply(current, quantity decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case MovementEntry, MovementReturn:
		return current.Add(quantity), nil
	case MovementExit, MovementLoss:
		if quantity.GreaterThan(current) {
			return current, ErrInsufficientStock
		}
		return current.Sub(quantity), nil
	case MovementAdjustment:
		if quantity.IsNegative() {
			return current, errors.New("adjustment quantity cannot be negative")
		}
		return quantity, nil
	case MovementTransfer:
		after := current.Add(quantity)
		if after.IsNegative() {
			return current, ErrInsufficientStock
		}
		return after, nil
	default:
		return current, errors.Errorf("unknown movement type %q", string(t))
	}
}

// StockMovement is an immutable ledger entry altering a part's quantity.
// QuantityBefore/After snapshot the part at the moment the movement applied;
// corrections are made with a new compensating movement, never by editing.
type StockMovement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	PartID    uuid.UUID `gorm:"type:uuid;not null;index" json:"part_id"`
	Part      *Part     `gorm:"foreignKey:PartID" json:"-"`

	Type           MovementType    `gorm:"not null" json:"type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"quantity"`
	QuantityBefore decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"quantity_before"`
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"quantity_after"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"unit_cost"`
	TotalValue     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_value"`

	// OrderID and ItemID tie movements spawned by order line items back to
	// their origin.
	OrderID *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ItemID  *uuid.UUID `gorm:"type:uuid" json:"item_id"`

	Reference string `json:"reference"`
	Notes     string `json:"notes"`
	CreatedBy string `json:"created_by"`
}

// RequisitionStatus is the procurement state of a part requisition.
type RequisitionStatus string

const (
	RequisitionPending          RequisitionStatus = "pending"
	RequisitionOrdered          RequisitionStatus = "ordered"
	RequisitionAwaitingDelivery RequisitionStatus = "awaiting_delivery"
	RequisitionReceived         RequisitionStatus = "received"
	RequisitionCancelled        RequisitionStatus = "cancelled"
)

// Open reports whether the requisition still blocks execution.
func (s RequisitionStatus) Open() bool {
	switch s {
	case RequisitionPending, RequisitionOrdered, RequisitionAwaitingDelivery:
		return true
	default:
		return false
	}
}

// PartRequisition is a request for a part needed by an order. Orders cannot
// enter execution while any of their requisitions are open.
type PartRequisition struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`
	PartID    *uuid.UUID     `gorm:"type:uuid" json:"part_id"`

	Description string            `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal   `gorm:"type:decimal(10,3);not null;default:1" json:"quantity"`
	Status      RequisitionStatus `gorm:"not null;default:'pending'" json:"status"`
	SupplierID  *uuid.UUID        `gorm:"type:uuid" json:"supplier_id"`
	ExpectedAt  *time.Time        `json:"expected_at"`
	ReceivedAt  *time.Time        `json:"received_at"`
	Notes       string            `json:"notes"`
}
