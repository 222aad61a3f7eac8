// Package appointment manages scheduling between patients and doctors.
// An active appointment is one leg of the relation that grants a doctor
// access to a patient's record.
package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Status defines the status of an appointment
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// validTransitions maps each status to the statuses it may move to
var validTransitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid checks whether the status is known
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsActive reports whether the appointment counts toward record access
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusInProgress
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

// Appointment represents a scheduled consultation
type Appointment struct {
	ID            types.ID `json:"id"`
	PatientUserID types.ID `json:"patient_user_id"`
	DoctorUserID  types.ID `json:"doctor_user_id"`
	Status        Status   `json:"status"`

	// Date is YYYY-MM-DD; StartTime and EndTime are HH:MM
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves the appointment to a new status
func (a *Appointment) Transition(next Status) error {
	if !next.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown status %q", next))
	}
	if !a.Status.CanTransitionTo(next) {
		return errors.Validation(fmt.Sprintf("cannot move appointment from %s to %s", a.Status, next))
	}
	a.Status = next
	return nil
}

// BookRequest is the request to book an appointment
type BookRequest struct {
	DoctorUserID types.ID `json:"doctor_user_id" validate:"required"`
	Date         string   `json:"date" validate:"required"`
	StartTime    string   `json:"start_time" validate:"required"`
	EndTime      string   `json:"end_time" validate:"required"`
	Reason       string   `json:"reason"`
}

// Validate checks the booking request
func (r *BookRequest) Validate() error {
	if r.DoctorUserID.IsZero() {
		return errors.Validation("doctor is required")
	}

	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return errors.Validation("date must be YYYY-MM-DD")
	}

	start, err := time.Parse("15:04", r.StartTime)
	if err != nil {
		return errors.Validation("start time must be HH:MM")
	}
	end, err := time.Parse("15:04", r.EndTime)
	if err != nil {
		return errors.Validation("end time must be HH:MM")
	}
	if !end.After(start) {
		return errors.Validation("end time must be after start time")
	}

	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// StatusRequest is the request to change an appointment's status
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

// ListFilter defines filters for listing appointments
type ListFilter struct {
	PatientUserID *types.ID `json:"patient_user_id,omitempty"`
	DoctorUserID  *types.ID `json:"doctor_user_id,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Date          string    `json:"date,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}
