package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/garageroute/services/workshop/internal/messaging"
	"example.com/garageroute/services/workshop/internal/models"
	"example.com/garageroute/services/workshop/internal/repository"
)

// AppointmentService handles scheduled customer visits
type AppointmentService struct {
	appointmentRepo repository.AppointmentRepository
	customerRepo    repository.CustomerRepository
	publisher       messaging.Publisher
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	appointmentRepo repository.AppointmentRepository,
	customerRepo repository.CustomerRepository,
	publisher messaging.Publisher,
) *AppointmentService {
	return &AppointmentService{
		appointmentRepo: appointmentRepo,
		customerRepo:    customerRepo,
		publisher:       publisher,
	}
}

// AppointmentInput carries a new appointment request.
type AppointmentInput struct {
	CustomerID  uuid.UUID
	VehicleID   *uuid.UUID
	ScheduledAt time.Time
	Service     string
	Notes       string
}

// Schedule books an appointment for a customer.
func (s *AppointmentService) Schedule(ctx context.Context, input AppointmentInput) (*models.Appointment, error) {
	if input.ScheduledAt.Before(time.Now()) {
		return nil, NewValidationError("appointments cannot be scheduled in the past")
	}

	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("customer %s not found", input.CustomerID)
		}
		return nil, errors.Wrap(err, "failed to load customer")
	}

	appointment := &models.Appointment{
		ID:          uuid.New(),
		CustomerID:  customer.ID,
		VehicleID:   input.VehicleID,
		ScheduledAt: input.ScheduledAt,
		Status:      models.AppointmentScheduled,
		Service:     input.Service,
		Notes:       input.Notes,
	}
	if err := s.appointmentRepo.Create(ctx, appointment); err != nil {
		return nil, errors.Wrap(err, "failed to create appointment")
	}

	log.Info().
		Str("appointment_id", appointment.ID.String()).
		Str("customer", customer.Name).
		Time("scheduled_at", appointment.ScheduledAt).
		Msg("appointment scheduled")
	return appointment, nil
}

// Confirm marks the appointment confirmed and notifies the customer.
func (s *AppointmentService) Confirm(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.AppointmentScheduled {
		return nil, NewValidationError("only scheduled appointments can be confirmed, this one is %s", appointment.Status)
	}

	appointment.Status = models.AppointmentConfirmed
	if err := s.appointmentRepo.Save(ctx, appointment); err != nil {
		return nil, errors.Wrap(err, "failed to confirm appointment")
	}

	if s.publisher != nil {
		event := messaging.Event{
			Type:          messaging.EventAppointmentDue,
			CustomerName:  appointment.Customer.Name,
			CustomerEmail: appointment.Customer.Email,
			CustomerPhone: appointment.Customer.Phone,
			Message:       "appointment confirmed for " + appointment.ScheduledAt.Format("02/01/2006 15:04"),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to publish appointment confirmation")
		}
	}
	return appointment, nil
}

// Cancel marks the appointment cancelled
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status == models.AppointmentAttended {
		return nil, NewValidationError("attended appointments cannot be cancelled")
	}

	appointment.Status = models.AppointmentCancelled
	if err := s.appointmentRepo.Save(ctx, appointment); err != nil {
		return nil, errors.Wrap(err, "failed to cancel appointment")
	}
	return appointment, nil
}

// ListDay returns the appointments of a calendar day
func (s *AppointmentService) ListDay(ctx context.Context, day time.Time) ([]models.Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.appointmentRepo.ListBetween(ctx, start, start.AddDate(0, 0, 1))
}

// SendReminders publishes reminder events for appointments inside the next
// window that have not been reminded yet. Used by the worker's cron job.
func (s *AppointmentService) SendReminders(ctx context.Context, window time.Duration) (int, error) {
	appointments, err := s.appointmentRepo.ListPendingReminders(ctx, time.Now().Add(window))
	if err != nil {
		return 0, errors.Wrap(err, "failed to list pending reminders")
	}

	sent := 0
	for i := range appointments {
		appointment := &appointments[i]

		if s.publisher != nil {
			event := messaging.Event{
				Type:          messaging.EventAppointmentDue,
				CustomerName:  appointment.Customer.Name,
				CustomerEmail: appointment.Customer.Email,
				CustomerPhone: appointment.Customer.Phone,
				Message:       "reminder: appointment on " + appointment.ScheduledAt.Format("02/01/2006 15:04"),
			}
			if err := s.publisher.Publish(ctx, event); err != nil {
				log.Warn().Err(err).
					Str("appointment_id", appointment.ID.String()).
					Msg("failed to publish reminder, will retry next run")
				continue
			}
		}

		appointment.ReminderSent = true
		if err := s.appointmentRepo.Save(ctx, appointment); err != nil {
			log.Error().Err(err).
				Str("appointment_id", appointment.ID.String()).
				Msg("failed to mark reminder as sent")
			continue
		}
		sent++
	}
	return sent, nil
}
