package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
)

// CustomerService handles customers and their vehicles
type CustomerService struct {
	customerRepo repository.CustomerRepository
	vehicleRepo  repository.VehicleRepository
}

// NewCustomerService creates a new customer service
func NewCustomerService(customerRepo repository.CustomerRepository, vehicleRepo repository.VehicleRepository) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		vehicleRepo:  vehicleRepo,
	}
}

// CustomerInput carries the editable customer fields.
type CustomerInput struct {
	Name       string
	DocumentID *string
	Phone      string
	Email      string
	Address    string
	Notes      string
}

// CreateCustomer registers a customer. Duplicate document ids are rejected.
func (s *CustomerService) CreateCustomer(ctx context.Context, input CustomerInput) (*models.Customer, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("customer name is required")
	}

	customer := &models.Customer{
		ID:         uuid.New(),
		Name:       input.Name,
		DocumentID: input.DocumentID,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		Notes:      input.Notes,
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewValidationError("a customer with this document id already exists")
		}
		return nil, errors.Wrap(err, "failed to create customer")
	}
	return customer, nil
}

// GetCustomer loads a customer with their vehicles
func (s *CustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return s.customerRepo.GetByID(ctx, id)
}

// ListCustomers returns customers matching an optional search term
func (s *CustomerService) ListCustomers(ctx context.Context, search string, limit, offset int) ([]models.Customer, error) {
	return s.customerRepo.List(ctx, search, limit, offset)
}

// UpdateCustomer edits a customer
func (s *CustomerService) UpdateCustomer(ctx context.Context, id uuid.UUID, input CustomerInput) (*models.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		customer.Name = input.Name
	}
	if input.DocumentID != nil {
		customer.DocumentID = input.DocumentID
	}
	if input.Phone != "" {
		customer.Phone = input.Phone
	}
	if input.Email != "" {
		customer.Email = input.Email
	}
	if input.Address != "" {
		customer.Address = input.Address
	}
	if input.Notes != "" {
		customer.Notes = input.Notes
	}

	if err := s.customerRepo.Save(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewValidationError("a customer with this document id already exists")
		}
		return nil, errors.Wrap(err, "failed to save customer")
	}
	return customer, nil
}

// DeleteCustomer soft-deletes a customer
func (s *CustomerService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	return s.customerRepo.Delete(ctx, id)
}

// VehicleInput carries the editable vehicle fields.
type VehicleInput struct {
	CustomerID uuid.UUID
	Plate      string
	Brand      string
	Model      string
	Year       *int
	Color      string
	VIN        string
	Mileage    *int
	Notes      string
}

// CreateVehicle registers a vehicle under a customer. A plate may appear at
// most once per customer.
func (s *CustomerService) CreateVehicle(ctx context.Context, input VehicleInput) (*models.Vehicle, error) {
	if strings.TrimSpace(input.Brand) == "" || strings.TrimSpace(input.Model) == "" {
		return nil, NewValidationError("vehicle brand and model are required")
	}

	if _, err := s.customerRepo.GetByID(ctx, input.CustomerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("customer %s not found", input.CustomerID)
		}
		return nil, errors.Wrap(err, "failed to load customer")
	}

	vehicle := &models.Vehicle{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		Plate:      input.Plate,
		Brand:      input.Brand,
		Model:      input.Model,
		Year:       input.Year,
		Color:      input.Color,
		VIN:        input.VIN,
		Mileage:    input.Mileage,
		Notes:      input.Notes,
	}
	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewValidationError("this customer already has a vehicle with plate %s", vehicle.Plate)
		}
		return nil, errors.Wrap(err, "failed to create vehicle")
	}
	return vehicle, nil
}

// GetVehicle loads a vehicle by ID
func (s *CustomerService) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	return s.vehicleRepo.GetByID(ctx, id)
}

// ListVehicles returns a customer's vehicles
func (s *CustomerService) ListVehicles(ctx context.Context, customerID uuid.UUID) ([]models.Vehicle, error) {
	return s.vehicleRepo.ListByCustomer(ctx, customerID)
}

// UpdateVehicle edits a vehicle
func (s *CustomerService) UpdateVehicle(ctx context.Context, id uuid.UUID, input VehicleInput) (*models.Vehicle, error) {
	vehicle, err := s.vehicleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Plate != "" {
		vehicle.Plate = input.Plate
	}
	if input.Brand != "" {
		vehicle.Brand = input.Brand
	}
	if input.Model != "" {
		vehicle.Model = input.Model
	}
	if input.Year != nil {
		vehicle.Year = input.Year
	}
	if input.Color != "" {
		vehicle.Color = input.Color
	}
	if input.VIN != "" {
		vehicle.VIN = input.VIN
	}
	if input.Mileage != nil {
		vehicle.Mileage = input.Mileage
	}
	if input.Notes != "" {
		vehicle.Notes = input.Notes
	}

	if err := s.vehicleRepo.Save(ctx, vehicle); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewValidationError("this customer already has a vehicle with plate %s", vehicle.Plate)
		}
		return nil, errors.Wrap(err, "failed to save vehicle")
	}
	return vehicle, nil
}

// DeleteVehicle soft-deletes a vehicle
func (s *CustomerService) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	return s.vehicleRepo.Delete(ctx, id)
}
