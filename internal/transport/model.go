// Package transport manages emergency transport requests. An active
// transport grants emergency staff read access to the patient's record for
// the duration of the run.
package transport

import (
	"fmt"
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Urgency defines how quickly a transport is needed
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// IsValid checks whether the urgency is known
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Status defines the status of a transport
type Status string

const (
	StatusRequested  Status = "requested"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validTransitions = map[Status][]Status{
	StatusRequested:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid checks whether the status is known
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsActive reports whether the transport grants emergency record access
func (s Status) IsActive() bool {
	return s != StatusCompleted && s != StatusCancelled
}

// CanTransitionTo checks whether the move is allowed
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transport represents an emergency transport request
type Transport struct {
	ID            types.ID `json:"id"`
	PatientUserID types.ID `json:"patient_user_id"`

	Pickup      types.Address `json:"pickup"`
	Destination types.Address `json:"destination"`
	Urgency     Urgency       `json:"urgency"`
	Status      Status        `json:"status"`

	// AssignedTo is the emergency staff member running the transport
	AssignedTo *types.ID `json:"assigned_to,omitempty"`

	RequestedAt time.Time `json:"requested_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transition moves the transport to a new status
func (t *Transport) Transition(next Status) error {
	if !next.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown status %q", next))
	}
	if !t.Status.CanTransitionTo(next) {
		return errors.Validation(fmt.Sprintf("cannot move transport from %s to %s", t.Status, next))
	}
	t.Status = next
	return nil
}

// RequestTransport is the request to create a transport
type RequestTransport struct {
	Pickup      types.Address `json:"pickup" validate:"required"`
	Destination types.Address `json:"destination" validate:"required"`
	Urgency     Urgency       `json:"urgency" validate:"required"`
}

// Validate checks the transport request
func (r *RequestTransport) Validate() error {
	if r.Pickup.Street == "" || r.Pickup.City == "" {
		return errors.Validation("pickup street and city are required")
	}
	if r.Destination.Street == "" || r.Destination.City == "" {
		return errors.Validation("destination street and city are required")
	}
	if !r.Urgency.IsValid() {
		return errors.Validation("urgency must be low, medium, high, or critical")
	}
	return nil
}

// UpdateRequest is the request to update a transport's status or assignee
type UpdateRequest struct {
	Status     *Status   `json:"status,omitempty"`
	AssignedTo *types.ID `json:"assigned_to,omitempty"`
}

// ListFilter defines filters for listing transports
type ListFilter struct {
	PatientUserID *types.ID `json:"patient_user_id,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	ActiveOnly    bool      `json:"active_only,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}
