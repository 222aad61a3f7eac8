package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// EventBus is the subset of the event bus the dispatcher needs
type EventBus interface {
	Subscribe(ctx context.Context, pattern string, handler events.Handler) error
}

// Dispatcher listens to domain events and delivers notifications through
// the configured provider
type Dispatcher struct {
	provider Provider
	bus      EventBus
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(provider Provider, bus EventBus) *Dispatcher {
	return &Dispatcher{provider: provider, bus: bus}
}

// Start subscribes to the event streams that produce notifications
func (d *Dispatcher) Start(ctx context.Context) error {
	patterns := []string{
		"appointment.*",
		"consent.*",
		"transport.*",
	}

	for _, pattern := range patterns {
		if err := d.bus.Subscribe(ctx, pattern, d.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
		}
	}

	return nil
}

// handleEvent maps an event to a notification and sends it. Delivery
// failures are logged, not propagated: a notification is never worth
// stalling the event stream over.
func (d *Dispatcher) handleEvent(ctx context.Context, event events.Event) error {
	n, ok := notificationFor(event)
	if !ok {
		return nil
	}

	if err := d.provider.Send(ctx, n); err != nil {
		log.Printf("notification delivery failed for %s: %v", event.Type, err)
	}
	return nil
}

// notificationFor builds the outgoing message for an event, if the event
// type warrants one
func notificationFor(event events.Event) (*Notification, bool) {
	data, _ := event.Data.(map[string]any)

	n := &Notification{
		ID:        types.NewID().String(),
		Priority:  PriorityNormal,
		EventType: event.Type,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	switch event.Type {
	case "appointment.booked":
		n.RecipientID = field(data, "doctor_user_id")
		n.Subject = "New appointment"
		n.Body = fmt.Sprintf("A patient booked an appointment on %s.", field(data, "date"))

	case "appointment.status_changed":
		// Notify the party that did not make the change.
		patientID := field(data, "patient_user_id")
		doctorID := field(data, "doctor_user_id")
		if event.ActorID.String() == patientID {
			n.RecipientID = doctorID
		} else {
			n.RecipientID = patientID
		}
		n.Subject = "Appointment updated"
		n.Body = fmt.Sprintf("Your appointment moved from %s to %s.", field(data, "from"), field(data, "to"))

	case "transport.requested":
		n.RecipientRole = string(auth.RoleEmergencyStaff)
		n.Subject = "New transport request"
		n.Body = fmt.Sprintf("A patient requested an emergency transport (urgency: %s).", field(data, "urgency"))
		switch field(data, "urgency") {
		case "critical":
			n.Priority = PriorityCritical
		case "high":
			n.Priority = PriorityHigh
		}

	case "transport.status_changed":
		n.RecipientID = field(data, "patient_user_id")
		n.Subject = "Transport update"
		n.Body = fmt.Sprintf("Your transport is now %s.", field(data, "to"))

	case "consent.granted":
		n.RecipientID = field(data, "doctor_user_id")
		n.Subject = "Record access granted"
		n.Body = "A patient granted you access to their medical record."

	case "consent.revoked":
		n.RecipientID = field(data, "doctor_user_id")
		n.Subject = "Record access revoked"
		n.Body = "A patient revoked your access to their medical record."

	default:
		return nil, false
	}

	if n.RecipientID == "" && n.RecipientRole == "" {
		return nil, false
	}

	return n, true
}

func field(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
