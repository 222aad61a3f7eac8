package internal

import (
	"context"
	"testing"

	"github.com/caremesh/telehealth/internal/audit"
	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/authz"
	"github.com/caremesh/telehealth/internal/gateway"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestConsentLifecycleGatesRecordAccess walks a doctor's access to a
// patient record through the consent lifecycle: no relation, appointment
// only, appointment plus consent, and finally revocation.
func TestConsentLifecycleGatesRecordAccess(t *testing.T) {
	ctx := context.Background()

	relations := authz.NewMemoryRelationSource()
	evaluator := authz.NewEvaluator(relations)

	patientID := types.NewID()
	doctorID := types.NewID()
	doctor := &authz.Principal{ID: doctorID, Role: auth.RoleDoctor}
	record := authz.Record{ID: types.NewID(), OwnerID: patientID}

	authorize := func() authz.Decision {
		t.Helper()
		decision, err := evaluator.Authorize(ctx, doctor, authz.CollectionPatientRecord, record, authz.OpRead)
		if err != nil {
			t.Fatalf("Authorize failed: %v", err)
		}
		return decision
	}

	// No relation at all.
	if d := authorize(); d.Allowed {
		t.Fatalf("Expected deny with no relation, got allow (%s)", d.Reason)
	}

	// Appointment without consent is not enough.
	relations.SetAppointment(doctorID, patientID, true)
	if d := authorize(); d.Allowed {
		t.Fatalf("Expected deny without consent, got allow (%s)", d.Reason)
	}

	// Appointment and consent together grant access.
	relations.SetConsent(doctorID, patientID, true)
	if d := authorize(); !d.Allowed {
		t.Fatalf("Expected allow with appointment and consent, got deny (%s)", d.Reason)
	}

	// Revocation flips the very next decision.
	relations.SetConsent(doctorID, patientID, false)
	if d := authorize(); d.Allowed {
		t.Fatalf("Expected deny after revocation, got allow (%s)", d.Reason)
	}
}

// TestEmergencyAccessFollowsTransportWindow tests that emergency staff
// access exists only while a transport is active
func TestEmergencyAccessFollowsTransportWindow(t *testing.T) {
	ctx := context.Background()

	relations := authz.NewMemoryRelationSource()
	evaluator := authz.NewEvaluator(relations)

	patientID := types.NewID()
	staff := &authz.Principal{ID: types.NewID(), Role: auth.RoleEmergencyStaff}
	record := authz.Record{ID: types.NewID(), OwnerID: patientID}

	decision, err := evaluator.Authorize(ctx, staff, authz.CollectionPatientRecord, record, authz.OpRead)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected deny without an active transport")
	}

	relations.SetTransport(patientID, true)
	decision, err = evaluator.Authorize(ctx, staff, authz.CollectionPatientRecord, record, authz.OpRead)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected allow during active transport, got deny (%s)", decision.Reason)
	}

	relations.SetTransport(patientID, false)
	decision, err = evaluator.Authorize(ctx, staff, authz.CollectionPatientRecord, record, authz.OpRead)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected deny after the transport completed")
	}
}

// TestStaticDemoSurface tests the canned dataset end to end: the doctor
// directory is served, and a booking synthesizes a response without
// persisting anything.
func TestStaticDemoSurface(t *testing.T) {
	ctx := context.Background()
	client := gateway.NewClient(gateway.Config{Mode: gateway.ModeStatic})

	fetched, err := client.FetchData(ctx, gateway.EndpointDoctors, nil)
	if err != nil {
		t.Fatalf("Expected static fetch to succeed, got: %v", err)
	}
	doctors, ok := fetched.([]map[string]any)
	if !ok {
		t.Fatalf("Expected a collection, got %T", fetched)
	}

	found := false
	for _, d := range doctors {
		if d["name"] == "Dr. Jane Smith" {
			found = true
			if d["specialty"] != "General Medicine" {
				t.Errorf("Expected General Medicine, got %v", d["specialty"])
			}
		}
	}
	if !found {
		t.Error("Expected the directory to include Dr. Jane Smith")
	}

	booking, err := client.PostData(ctx, gateway.EndpointAppts, map[string]any{
		"doctorId": "some-doctor",
		"date":     "2026-09-01",
	})
	if err != nil {
		t.Fatalf("Expected static booking to succeed, got: %v", err)
	}
	if booking["id"] == nil || booking["id"] == "" {
		t.Error("Expected a synthesized booking ID")
	}

	refetched, err := client.FetchData(ctx, gateway.EndpointAppts, nil)
	if err != nil {
		t.Fatalf("Expected static fetch to succeed, got: %v", err)
	}
	appointments, ok := refetched.([]map[string]any)
	if !ok {
		t.Fatalf("Expected a collection, got %T", refetched)
	}
	for _, a := range appointments {
		if a["id"] == booking["id"] {
			t.Error("Expected the synthesized booking to not be persisted")
		}
	}
}

// TestAuditChainAcrossActions tests that entries from different modules
// link into one verifiable chain
func TestAuditChainAcrossActions(t *testing.T) {
	patientID := types.NewID()
	doctorID := types.NewID()
	recordID := types.NewID()

	login := audit.NewEntry("doctor", doctorID, audit.ActionLogin, "auth", nil, nil, "")
	view := audit.NewEntry("doctor", doctorID, audit.ActionRecordViewed, "record", &recordID,
		map[string]any{"mrn": "******7890"}, login.Hash)
	revoke := audit.NewEntry("patient", patientID, audit.ActionConsentRevoked, "consent", nil, nil, view.Hash)
	denied := audit.NewEntry("doctor", doctorID, audit.ActionRecordDenied, "record", &recordID,
		map[string]any{"reason": "no active consent from this patient"}, revoke.Hash)

	chain := []*audit.Entry{login, view, revoke, denied}
	prev := ""
	for i, entry := range chain {
		if !entry.VerifyHash() {
			t.Errorf("Entry %d failed content verification", i)
		}
		if entry.PrevHash != prev {
			t.Errorf("Entry %d not linked to its predecessor", i)
		}
		prev = entry.Hash
	}

	// Tampering with an early entry is detectable.
	view.Changes = map[string]any{"mrn": "1234567890"}
	if view.VerifyHash() {
		t.Error("Expected tampered entry to fail verification")
	}
}
