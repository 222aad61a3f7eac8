// Package notification turns domain events into user-facing messages and
// hands them to a delivery provider. Delivery runs off the event bus, so
// a slow or down provider never blocks an API response.
package notification

import (
	"time"
)

// Priority represents delivery priority
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification represents a message to be delivered. Exactly one of
// RecipientID and RecipientRole is set: RecipientID targets a single
// principal, RecipientRole fans out to everyone holding the role.
type Notification struct {
	ID            string   `json:"id"`
	RecipientID   string   `json:"recipient_id,omitempty"`
	RecipientRole string   `json:"recipient_role,omitempty"`
	Priority      Priority `json:"priority"`

	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`

	// EventType is the domain event that produced this notification
	EventType string `json:"event_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
