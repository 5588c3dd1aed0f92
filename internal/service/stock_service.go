package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"example.com/garageroute/services/workshop/internal/cache"
	"example.com/garageroute/services/workshop/internal/messaging"
	"example.com/garageroute/services/workshop/internal/metrics"
	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
)

// StockService handles parts and the stock movement ledger
type StockService struct {
	partRepo  repository.PartRepository
	cache     *cache.RedisCache
	publisher messaging.Publisher
	collector *metrics.Collector
}

// NewStockService creates a new stock service
func NewStockService(partRepo repository.PartRepository, redisCache *cache.RedisCache, publisher messaging.Publisher) *StockService {
	return &StockService{
		partRepo:  partRepo,
		cache:     redisCache,
		publisher: publisher,
		collector: metrics.Default(),
	}
}

// PartInput carries the editable part fields.
type PartInput struct {
	Code             string
	Name             string
	CategoryID       *uuid.UUID
	SupplierID       *uuid.UUID
	Description      string
	ManufacturerCode string
	Barcode          string
	Location         string
	Unit             string
	MinQuantity      decimal.Decimal
	MaxQuantity      decimal.Decimal
	CostPrice        decimal.Decimal
	SalePrice        decimal.Decimal
	InitialQuantity  decimal.Decimal
}

// CreatePart registers a part. A non-zero initial quantity is written as an
// entry movement so the ledger covers the opening balance too.
func (s *StockService) CreatePart(ctx context.Context, input PartInput) (*models.Part, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, NewValidationError("part code is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("part name is required")
	}
	if input.CostPrice.IsNegative() || input.SalePrice.IsNegative() {
		return nil, NewValidationError("part prices cannot be negative")
	}
	if input.MinQuantity.IsNegative() || input.MaxQuantity.IsNegative() {
		return nil, NewValidationError("stock thresholds cannot be negative")
	}
	if input.InitialQuantity.IsNegative() {
		return nil, NewValidationError("initial quantity cannot be negative")
	}

	part := &models.Part{
		ID:               uuid.New(),
		Code:             input.Code,
		Name:             input.Name,
		CategoryID:       input.CategoryID,
		SupplierID:       input.SupplierID,
		Description:      input.Description,
		ManufacturerCode: input.ManufacturerCode,
		Barcode:          input.Barcode,
		Location:         input.Location,
		Unit:             input.Unit,
		Active:           true,
		MinQuantity:      input.MinQuantity,
		MaxQuantity:      input.MaxQuantity,
		CostPrice:        input.CostPrice.Round(2),
		SalePrice:        input.SalePrice.Round(2),
	}
	if part.Unit == "" {
		part.Unit = "unit"
	}

	if err := s.partRepo.Create(ctx, part); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewValidationError("a part with code %s already exists", part.Code)
		}
		return nil, errors.Wrap(err, "failed to create part")
	}

	if input.InitialQuantity.IsPositive() {
		movement := &models.StockMovement{
			PartID:   part.ID,
			Type:     models.MovementEntry,
			Quantity: input.InitialQuantity,
			Notes:    "initial stock",
		}
		if err := s.partRepo.ApplyMovement(ctx, movement); err != nil {
			return nil, errors.Wrap(err, "failed to register initial stock")
		}
		part.Quantity = movement.QuantityAfter
	}

	log.Info().Str("part_id", part.ID.String()).Str("code", part.Code).Msg("part created")
	return part, nil
}

// GetPart loads a part by ID
func (s *StockService) GetPart(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	return s.partRepo.GetByID(ctx, id)
}

// ListParts returns parts, active only or all
func (s *StockService) ListParts(ctx context.Context, activeOnly bool) ([]models.Part, error) {
	return s.partRepo.List(ctx, activeOnly)
}

// UpdatePart edits a part's catalog fields. Quantity is out of scope here,
// it only moves through the ledger.
func (s *StockService) UpdatePart(ctx context.Context, id uuid.UUID, input PartInput) (*models.Part, error) {
	part, err := s.partRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		part.Name = input.Name
	}
	if input.Description != "" {
		part.Description = input.Description
	}
	if input.Location != "" {
		part.Location = input.Location
	}
	if input.Unit != "" {
		part.Unit = input.Unit
	}
	if input.CategoryID != nil {
		part.CategoryID = input.CategoryID
	}
	if input.SupplierID != nil {
		part.SupplierID = input.SupplierID
	}
	if !input.MinQuantity.IsNegative() {
		part.MinQuantity = input.MinQuantity
	}
	if !input.MaxQuantity.IsNegative() {
		part.MaxQuantity = input.MaxQuantity
	}
	if input.CostPrice.IsPositive() {
		part.CostPrice = input.CostPrice.Round(2)
	}
	if input.SalePrice.IsPositive() {
		part.SalePrice = input.SalePrice.Round(2)
	}

	if err := s.partRepo.Save(ctx, part); err != nil {
		return nil, errors.Wrap(err, "failed to save part")
	}
	return part, nil
}

// DeactivatePart marks a part inactive without touching its ledger
func (s *StockService) DeactivatePart(ctx context.Context, id uuid.UUID) error {
	part, err := s.partRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	part.Active = false
	return s.partRepo.Save(ctx, part)
}

// MovementInput carries a manual stock movement.
type MovementInput struct {
	Type      models.MovementType
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Reference string
	Notes     string
	CreatedBy string
}

// RegisterMovement writes a ledger entry against a part. Quantity semantics
// follow the movement type: entry/return add, exit/loss subtract, adjustment
// sets the absolute value and transfer applies a signed delta.
func (s *StockService) RegisterMovement(ctx context.Context, partID uuid.UUID, input MovementInput) (*models.StockMovement, error) {
	if models.MovementTypeFromString(string(input.Type)) == "" {
		return nil, NewValidationError("unknown movement type %q", input.Type)
	}
	if input.Type != models.MovementTransfer && input.Quantity.IsNegative() {
		return nil, NewValidationError("movement quantity cannot be negative")
	}
	if input.Type != models.MovementAdjustment && input.Quantity.IsZero() {
		return nil, NewValidationError("movement quantity cannot be zero")
	}

	movement := &models.StockMovement{
		PartID:    partID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		Reference: input.Reference,
		Notes:     input.Notes,
		CreatedBy: input.CreatedBy,
	}

	if err := s.partRepo.ApplyMovement(ctx, movement); err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			return nil, NewValidationError("insufficient stock for movement")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to apply movement")
	}

	log.Info().
		Str("part_id", partID.String()).
		Str("type", string(movement.Type)).
		Str("quantity", movement.Quantity.String()).
		Str("after", movement.QuantityAfter.String()).
		Msg("stock movement registered")

	s.collector.RecordStockMovement(string(movement.Type))
	s.notifyIfLow(ctx, partID)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.DashboardStatsKey); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate dashboard cache")
		}
	}
	return movement, nil
}

// ListMovements returns a part's ledger, newest first
func (s *StockService) ListMovements(ctx context.Context, partID uuid.UUID, limit int) ([]models.StockMovement, error) {
	return s.partRepo.ListMovements(ctx, partID, limit)
}

// ListLowStock returns active parts at or under their reorder threshold
func (s *StockService) ListLowStock(ctx context.Context) ([]models.Part, error) {
	return s.partRepo.ListBelowMinimum(ctx)
}

// CreateCategory registers a part category
func (s *StockService) CreateCategory(ctx context.Context, name, description string) (*models.PartCategory, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewValidationError("category name is required")
	}
	category := &models.PartCategory{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
	}
	if err := s.partRepo.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewValidationError("a category named %s already exists", name)
		}
		return nil, errors.Wrap(err, "failed to create category")
	}
	return category, nil
}

// ListCategories returns all part categories
func (s *StockService) ListCategories(ctx context.Context) ([]models.PartCategory, error) {
	return s.partRepo.ListCategories(ctx)
}

// CreateSupplier registers a supplier
func (s *StockService) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	if strings.TrimSpace(supplier.Name) == "" {
		return NewValidationError("supplier name is required")
	}
	return s.partRepo.CreateSupplier(ctx, supplier)
}

// ListSuppliers returns all suppliers
func (s *StockService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return s.partRepo.ListSuppliers(ctx)
}

// notifyIfLow publishes a low-stock event when the part crossed its
// threshold. Fire-and-forget.
func (s *StockService) notifyIfLow(ctx context.Context, partID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	part, err := s.partRepo.GetByID(ctx, partID)
	if err != nil || !part.BelowMinimum() {
		return
	}
	event := messaging.Event{
		Type:    messaging.EventStockLow,
		Message: "part " + part.Code + " (" + part.Name + ") is at " + part.Quantity.String(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("part_id", partID.String()).Msg("failed to publish low stock event")
	}
}
