package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/garageroute/services/workshop/internal/db"
	"example.com/garageroute/services/workshop/internal/models"
)

// PartRepository defines the interface for inventory persistence
type PartRepository interface {
	Create(ctx context.Context, part *models.Part) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error)
	GetByCode(ctx context.Context, code string) (*models.Part, error)
	List(ctx context.Context, activeOnly bool) ([]models.Part, error)
	ListBelowMinimum(ctx context.Context) ([]models.Part, error)
	Save(ctx context.Context, part *models.Part) error

	ApplyMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, partID uuid.UUID, limit int) ([]models.StockMovement, error)
	ListOrderMovements(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)

	CreateCategory(ctx context.Context, category *models.PartCategory) error
	ListCategories(ctx context.Context) ([]models.PartCategory, error)
	CreateSupplier(ctx context.Context, supplier *models.Supplier) error
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
}

type partRepository struct {
	db *gorm.DB
}

// NewPartRepository creates a new part repository
func NewPartRepository(gdb *gorm.DB) PartRepository {
	return &partRepository{db: gdb}
}

// Create persists a new part. Codes are normalized to upper case.
func (r *partRepository) Create(ctx context.Context, part *models.Part) error {
	if part.ID == uuid.Nil {
		part.ID = uuid.New()
	}
	part.Code = strings.ToUpper(strings.TrimSpace(part.Code))

	err := r.db.WithContext(ctx).Create(part).Error
	if db.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// GetByID finds a part by ID
func (r *partRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Supplier").
		First(&part, "id = ?", id).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// GetByCode finds a part by its code
func (r *partRepository) GetByCode(ctx context.Context, code string) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&part).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// List returns parts ordered by code
func (r *partRepository) List(ctx context.Context, activeOnly bool) ([]models.Part, error) {
	q := r.db.WithContext(ctx).Order("code ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var parts []models.Part
	if err := q.Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

// ListBelowMinimum returns active parts at or under their reorder threshold
func (r *partRepository) ListBelowMinimum(ctx context.Context) ([]models.Part, error) {
	var parts []models.Part
	err := r.db.WithContext(ctx).
		Where("active = ? AND quantity <= min_quantity", true).
		Order("code ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// Save persists changes on a part row
func (r *partRepository) Save(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// ApplyMovement writes a stock ledger entry and the resulting part quantity
// in one transaction. The part row is locked for update so concurrent
// movements serialize and the before/after snapshots stay consistent.
func (r *partRepository) ApplyMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var part models.Part
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&part, "id = ?", movement.PartID).Error
		if err != nil {
			if db.IsRecordNotFoundError(err) {
				return ErrNotFound
			}
			return err
		}

		after, err := movement.Type.Apply(part.Quantity, movement.Quantity)
		if err != nil {
			return err
		}

		if movement.ID == uuid.Nil {
			movement.ID = uuid.New()
		}
		movement.QuantityBefore = part.Quantity
		movement.QuantityAfter = after
		if movement.UnitCost.IsZero() {
			movement.UnitCost = part.CostPrice
		}
		if movement.TotalValue.IsZero() {
			movement.TotalValue = movement.UnitCost.Mul(movement.Quantity).Round(2)
		}

		if err := tx.Create(movement).Error; err != nil {
			return err
		}

		return tx.Model(&models.Part{}).
			Where("id = ?", part.ID).
			Update("quantity", after).Error
	})
}

// ListMovements returns a part's ledger, newest first
func (r *partRepository) ListMovements(ctx context.Context, partID uuid.UUID, limit int) ([]models.StockMovement, error) {
	q := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var movements []models.StockMovement
	if err := q.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// ListOrderMovements returns the movements an order's items produced
func (r *partRepository) ListOrderMovements(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// CreateCategory persists a part category
func (r *partRepository) CreateCategory(ctx context.Context, category *models.PartCategory) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(category).Error
	if db.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// ListCategories returns all part categories
func (r *partRepository) ListCategories(ctx context.Context) ([]models.PartCategory, error) {
	var categories []models.PartCategory
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateSupplier persists a supplier
func (r *partRepository) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	if supplier.ID == uuid.Nil {
		supplier.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(supplier).Error
}

// ListSuppliers returns all suppliers
func (r *partRepository) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}
