package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/garageroute/services/workshop/internal/db"
	"example.com/garageroute/services/workshop/internal/models"
)

// AppointmentRepository defines the interface for appointment persistence
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
	ListPendingReminders(ctx context.Context, windowEnd time.Time) ([]models.Appointment, error)
	Save(ctx context.Context, appointment *models.Appointment) error
}

type appointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(gdb *gorm.DB) AppointmentRepository {
	return &appointmentRepository{db: gdb}
}

// Create persists a new appointment
func (r *appointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.Status == "" {
		appointment.Status = models.AppointmentScheduled
	}
	return r.db.WithContext(ctx).Create(appointment).Error
}

// GetByID finds an appointment by ID
func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		First(&appointment, "id = ?", id).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

// ListBetween returns appointments scheduled inside the window
func (r *appointmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Order("scheduled_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// ListPendingReminders returns upcoming appointments that have not had their
// reminder sent yet.
func (r *appointmentRepository) ListPendingReminders(ctx context.Context, windowEnd time.Time) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("reminder_sent = ? AND scheduled_at > ? AND scheduled_at <= ?", false, time.Now(), windowEnd).
		Where("status IN ?", []models.AppointmentStatus{models.AppointmentScheduled, models.AppointmentConfirmed}).
		Order("scheduled_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// Save persists changes on an appointment
func (r *appointmentRepository) Save(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Save(appointment).Error
}
