package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/garageroute/services/workshop/internal/db"
	"example.com/garageroute/services/workshop/internal/models"
)

// VehicleRepository defines the interface for vehicle persistence
type VehicleRepository interface {
	Create(ctx context.Context, vehicle *models.Vehicle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	GetByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Vehicle, error)
	Save(ctx context.Context, vehicle *models.Vehicle) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(gdb *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: gdb}
}

// Create persists a new vehicle. Plates are normalized to upper case.
func (r *vehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	vehicle.Plate = strings.ToUpper(strings.TrimSpace(vehicle.Plate))

	err := r.db.WithContext(ctx).Create(vehicle).Error
	if db.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// GetByID finds a vehicle by ID
func (r *vehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Customer").
		First(&vehicle, "id = ?", id).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// GetByPlate finds a vehicle by its license plate
func (r *vehicleRepository) GetByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("plate = ?", strings.ToUpper(strings.TrimSpace(plate))).
		First(&vehicle).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// ListByCustomer returns a customer's vehicles
func (r *vehicleRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// Save persists changes on a vehicle
func (r *vehicleRepository) Save(ctx context.Context, vehicle *models.Vehicle) error {
	vehicle.Plate = strings.ToUpper(strings.TrimSpace(vehicle.Plate))
	err := r.db.WithContext(ctx).Save(vehicle).Error
	if db.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// Delete soft-deletes a vehicle
func (r *vehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Vehicle{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
