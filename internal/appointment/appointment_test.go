package appointment

import (
	"testing"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestBookRequestValidation tests booking input validation
func TestBookRequestValidation(t *testing.T) {
	doctorID := types.NewID()

	tests := []struct {
		name    string
		req     BookRequest
		wantErr bool
	}{
		{"Valid", BookRequest{DoctorUserID: doctorID, Date: "2026-09-01", StartTime: "09:00", EndTime: "09:30"}, false},
		{"Missing doctor", BookRequest{Date: "2026-09-01", StartTime: "09:00", EndTime: "09:30"}, true},
		{"Bad date", BookRequest{DoctorUserID: doctorID, Date: "01/09/2026", StartTime: "09:00", EndTime: "09:30"}, true},
		{"Bad start time", BookRequest{DoctorUserID: doctorID, Date: "2026-09-01", StartTime: "9am", EndTime: "09:30"}, true},
		{"End before start", BookRequest{DoctorUserID: doctorID, Date: "2026-09-01", StartTime: "10:00", EndTime: "09:30"}, true},
		{"Zero-length slot", BookRequest{DoctorUserID: doctorID, Date: "2026-09-01", StartTime: "09:00", EndTime: "09:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

// TestStatusTransitions tests the appointment lifecycle table
func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			a := &Appointment{ID: types.NewID(), Status: tt.from}
			err := a.Transition(tt.to)

			if tt.allowed && err != nil {
				t.Errorf("Expected transition to succeed, got: %v", err)
			}
			if !tt.allowed && err == nil {
				t.Error("Expected transition to fail")
			}
			if !tt.allowed && a.Status != tt.from {
				t.Errorf("Expected status unchanged after rejected transition, got %s", a.Status)
			}
		})
	}
}

// TestTransitionRejectsUnknownStatus tests unknown target statuses
func TestTransitionRejectsUnknownStatus(t *testing.T) {
	a := &Appointment{ID: types.NewID(), Status: StatusScheduled}
	if err := a.Transition(Status("archived")); err == nil {
		t.Error("Expected error for unknown status")
	}
}

// TestStatusIsActive tests which statuses grant record access
func TestStatusIsActive(t *testing.T) {
	active := map[Status]bool{
		StatusScheduled:  true,
		StatusInProgress: true,
		StatusCompleted:  false,
		StatusCancelled:  false,
	}

	for status, want := range active {
		if got := status.IsActive(); got != want {
			t.Errorf("Expected %s.IsActive()=%v, got %v", status, want, got)
		}
	}
}
