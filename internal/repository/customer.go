package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/garageroute/services/workshop/internal/db"
	"example.com/garageroute/services/workshop/internal/models"
)

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetByDocument(ctx context.Context, document string) (*models.Customer, error)
	List(ctx context.Context, search string, limit, offset int) ([]models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(gdb *gorm.DB) CustomerRepository {
	return &customerRepository{db: gdb}
}

// Create persists a new customer
func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(customer).Error
	if db.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// GetByID finds a customer by ID with their vehicles
func (r *customerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Preload("Vehicles").
		First(&customer, "id = ?", id).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// GetByDocument finds a customer by national document number
func (r *customerRepository) GetByDocument(ctx context.Context, document string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("document_id = ?", document).
		First(&customer).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// List returns customers, optionally filtered by a name/phone/document search
func (r *customerRepository) List(ctx context.Context, search string, limit, offset int) ([]models.Customer, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where("name ILIKE ? OR phone LIKE ? OR document_id LIKE ?", pattern, pattern, pattern)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var customers []models.Customer
	if err := q.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// Save persists changes on a customer
func (r *customerRepository) Save(ctx context.Context, customer *models.Customer) error {
	err := r.db.WithContext(ctx).Save(customer).Error
	if db.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// Delete soft-deletes a customer
func (r *customerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
