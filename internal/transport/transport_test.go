package transport

import (
	"context"
	"testing"

	"github.com/caremesh/telehealth/internal/gateway"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestRequestValidation tests transport request validation
func TestRequestValidation(t *testing.T) {
	pickup := types.NewAddress("12 Oak St", "Springfield", "62701")
	destination := types.NewAddress("400 Hospital Dr", "Springfield", "62702")

	tests := []struct {
		name    string
		req     RequestTransport
		wantErr bool
	}{
		{"Valid", RequestTransport{Pickup: pickup, Destination: destination, Urgency: UrgencyHigh}, false},
		{"Missing pickup", RequestTransport{Destination: destination, Urgency: UrgencyHigh}, true},
		{"Missing destination", RequestTransport{Pickup: pickup, Urgency: UrgencyHigh}, true},
		{"Bad urgency", RequestTransport{Pickup: pickup, Destination: destination, Urgency: Urgency("asap")}, true},
		{"Missing urgency", RequestTransport{Pickup: pickup, Destination: destination}, true},
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

// TestStatusLifecycle tests the transport state machine
func TestStatusLifecycle(t *testing.T) {
	tr := &Transport{ID: types.NewID(), Status: StatusRequested}

	for _, next := range []Status{StatusAssigned, StatusInProgress, StatusCompleted} {
		if err := tr.Transition(next); err != nil {
			t.Fatalf("Expected transition to %s to succeed, got: %v", next, err)
		}
	}

	if err := tr.Transition(StatusCancelled); err == nil {
		t.Error("Expected completed transport to reject further transitions")
	}
}

// TestStatusActiveWindow tests which statuses grant emergency record access
func TestStatusActiveWindow(t *testing.T) {
	active := map[Status]bool{
		StatusRequested:  true,
		StatusAssigned:   true,
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

// TestInProgressCannotBeCancelled tests that a transport already underway
// can only complete
func TestInProgressCannotBeCancelled(t *testing.T) {
	tr := &Transport{ID: types.NewID(), Status: StatusInProgress}
	if err := tr.Transition(StatusCancelled); err == nil {
		t.Error("Expected in-progress transport to reject cancellation")
	}
}

// TestDemoDatasetSpeaksSameVocabulary tests that every transport status in
// the static demo dataset is one the live module accepts
func TestDemoDatasetSpeaksSameVocabulary(t *testing.T) {
	client := gateway.NewClient(gateway.Config{Mode: gateway.ModeStatic})

	fetched, err := client.FetchData(context.Background(), gateway.EndpointTransports, nil)
	if err != nil {
		t.Fatalf("Expected static fetch to succeed, got: %v", err)
	}
	transports, ok := fetched.([]map[string]any)
	if !ok {
		t.Fatalf("Expected a collection, got %T", fetched)
	}
	if len(transports) == 0 {
		t.Fatal("Expected demo transports to be present")
	}

	for _, tr := range transports {
		status, _ := tr["status"].(string)
		if !Status(status).IsValid() {
			t.Errorf("Demo transport %v carries unknown status %q", tr["id"], status)
		}
	}
}
