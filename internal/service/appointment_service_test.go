package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/garageroute/services/workshop/internal/models"
)

// Mock AppointmentRepository for testing
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListPendingReminders(ctx context.Context, windowEnd time.Time) ([]models.Appointment, error) {
	args := m.Called(ctx, windowEnd)
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) Save(ctx context.Context, appointment *models.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

// Mock CustomerRepository for testing
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetByDocument(ctx context.Context, document string) (*models.Customer, error) {
	args := m.Called(ctx, document)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) List(ctx context.Context, search string, limit, offset int) ([]models.Customer, error) {
	args := m.Called(ctx, search, limit, offset)
	return args.Get(0).([]models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Save(ctx context.Context, customer *models.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestScheduleRejectsPastTimes(t *testing.T) {
	service := NewAppointmentService(new(MockAppointmentRepository), new(MockCustomerRepository), nil)

	_, err := service.Schedule(context.Background(), AppointmentInput{
		CustomerID:  uuid.New(),
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestScheduleCreatesAppointment(t *testing.T) {
	mockAppointments := new(MockAppointmentRepository)
	mockCustomers := new(MockCustomerRepository)
	service := NewAppointmentService(mockAppointments, mockCustomers, nil)

	customer := &models.Customer{ID: uuid.New(), Name: "Joana Pereira"}
	mockCustomers.On("GetByID", mock.Anything, customer.ID).Return(customer, nil)
	mockAppointments.On("Create", mock.Anything, mock.AnythingOfType("*models.Appointment")).Return(nil)

	appointment, err := service.Schedule(context.Background(), AppointmentInput{
		CustomerID:  customer.ID,
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Service:     "oil change",
	})
	require.NoError(t, err)
	require.Equal(t, models.AppointmentScheduled, appointment.Status)
	require.Equal(t, customer.ID, appointment.CustomerID)

	mockAppointments.AssertExpectations(t)
}

func TestConfirmOnlyScheduled(t *testing.T) {
	mockAppointments := new(MockAppointmentRepository)
	service := NewAppointmentService(mockAppointments, new(MockCustomerRepository), nil)

	appointment := &models.Appointment{
		ID:     uuid.New(),
		Status: models.AppointmentCancelled,
	}
	mockAppointments.On("GetByID", mock.Anything, appointment.ID).Return(appointment, nil)

	_, err := service.Confirm(context.Background(), appointment.ID)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestCancelRejectsAttended(t *testing.T) {
	mockAppointments := new(MockAppointmentRepository)
	service := NewAppointmentService(mockAppointments, new(MockCustomerRepository), nil)

	appointment := &models.Appointment{
		ID:     uuid.New(),
		Status: models.AppointmentAttended,
	}
	mockAppointments.On("GetByID", mock.Anything, appointment.ID).Return(appointment, nil)

	_, err := service.Cancel(context.Background(), appointment.ID)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestSendRemindersMarksAppointments(t *testing.T) {
	mockAppointments := new(MockAppointmentRepository)
	service := NewAppointmentService(mockAppointments, new(MockCustomerRepository), nil)

	appointments := []models.Appointment{
		{ID: uuid.New(), ScheduledAt: time.Now().Add(3 * time.Hour), Status: models.AppointmentConfirmed},
		{ID: uuid.New(), ScheduledAt: time.Now().Add(5 * time.Hour), Status: models.AppointmentScheduled},
	}
	mockAppointments.On("ListPendingReminders", mock.Anything, mock.AnythingOfType("time.Time")).Return(appointments, nil)
	mockAppointments.On("Save", mock.Anything, mock.MatchedBy(func(a *models.Appointment) bool {
		return a.ReminderSent
	})).Return(nil).Twice()

	sent, err := service.SendReminders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, sent)

	mockAppointments.AssertExpectations(t)
}
