package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/garageroute/services/workshop/config"
)

// Event types published to the workshop queue.
const (
	EventOrderStatusChanged = "order.status_changed"
	EventOrderApproved      = "order.approved"
	EventOrderRejected      = "order.rejected"
	EventOrderOverdue       = "order.overdue"
	EventAppointmentDue     = "appointment.reminder"
	EventStockLow           = "stock.low"
)

// Event is the envelope for every message on the workshop queue.
type Event struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id,omitempty"`
	OrderNumber   string    `json:"order_number,omitempty"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Status        string    `json:"status,omitempty"`
	Message       string    `json:"message,omitempty"`
	Time          time.Time `json:"time"`
}

// EventHandler processes a single decoded event.
type EventHandler func(ctx context.Context, event Event) error

// Publisher publishes events to the workshop queue.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// AzureServiceBus wraps the Azure Service Bus client for the workshop queue.
type AzureServiceBus struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewAzureServiceBus creates a new Azure Service Bus client for the
// configured queue.
func NewAzureServiceBus(cfg config.AzureConfig) (*AzureServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &AzureServiceBus{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// Publish sends an event to the queue
func (s *AzureServiceBus) Publish(ctx context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"type": event.Type,
			"time": event.Time.Format(time.RFC3339),
		},
	}
	return s.sender.SendMessage(ctx, msg, nil)
}

// ProcessMessages receives events from the queue in a loop and hands them to
// the handler until the context is canceled. Failed messages are abandoned
// so the broker redelivers them.
func (s *AzureServiceBus) ProcessMessages(ctx context.Context, handler EventHandler) error {
	receiver, err := s.client.NewReceiverForQueue(s.queueName, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer receiver.Close(context.Background())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("error receiving messages")
			time.Sleep(2 * time.Second)
			continue
		}

		for _, message := range messages {
			var event Event
			if err := json.Unmarshal(message.Body, &event); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("dropping undecodable message")
				if err := receiver.DeadLetterMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Msg("failed to dead-letter message")
				}
				continue
			}

			if err := handler(ctx, event); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Str("type", event.Type).Msg("error processing event")
				if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Msg("failed to abandon message")
				}
				continue
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Msg("failed to complete message")
			}
		}
	}
}

// Close closes the Service Bus sender and client
func (s *AzureServiceBus) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}
