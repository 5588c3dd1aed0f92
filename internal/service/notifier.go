package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"example.com/garageroute/services/workshop/internal/messaging"
	"example.com/garageroute/services/workshop/internal/notify"
)

// Notifier consumes queue events in the worker and turns them into customer
// and staff emails. Delivery failures are logged and the event is retried by
// the broker.
type Notifier struct {
	mailer     notify.Mailer
	staffEmail string
}

// NewNotifier creates a notifier
func NewNotifier(mailer notify.Mailer, staffEmail string) *Notifier {
	return &Notifier{
		mailer:     mailer,
		staffEmail: staffEmail,
	}
}

// HandleEvent routes one queue event to the right recipient.
func (n *Notifier) HandleEvent(ctx context.Context, event messaging.Event) error {
	log.Debug().Str("type", event.Type).Str("order", event.OrderNumber).Msg("handling event")

	switch event.Type {
	case messaging.EventOrderStatusChanged:
		if event.CustomerEmail == "" {
			return nil
		}
		subject := fmt.Sprintf("Order %s update", event.OrderNumber)
		body := fmt.Sprintf("Hello %s,\n\nYour order %s is now %s.\n", event.CustomerName, event.OrderNumber, event.Status)
		if event.Message != "" {
			body += "\n" + event.Message + "\n"
		}
		return n.mailer.Send(event.CustomerEmail, subject, body)

	case messaging.EventOrderApproved, messaging.EventOrderRejected:
		if event.CustomerEmail == "" {
			return nil
		}
		subject := fmt.Sprintf("Order %s quote %s", event.OrderNumber, verdict(event.Type))
		body := fmt.Sprintf("Hello %s,\n\n%s\n", event.CustomerName, event.Message)
		return n.mailer.Send(event.CustomerEmail, subject, body)

	case messaging.EventAppointmentDue:
		if event.CustomerEmail == "" {
			return nil
		}
		return n.mailer.Send(event.CustomerEmail, "Appointment reminder", "Hello "+event.CustomerName+",\n\n"+event.Message+"\n")

	case messaging.EventOrderOverdue, messaging.EventStockLow:
		if n.staffEmail == "" {
			return nil
		}
		return n.mailer.Send(n.staffEmail, "Workshop alert", event.Message)

	default:
		log.Warn().Str("type", event.Type).Msg("unknown event type, dropping")
		return nil
	}
}

func verdict(eventType string) string {
	if eventType == messaging.EventOrderApproved {
		return "approved"
	}
	return "rejected"
}
