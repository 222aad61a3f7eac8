package authz

import (
	"context"
	"testing"

	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/shared/types"
)

func newTestEvaluator() (*Evaluator, *MemoryRelationSource) {
	relations := NewMemoryRelationSource()
	return NewEvaluator(relations), relations
}

// TestOwnerAccessToPatientRecord tests that the owning principal can always
// read and write their own record
func TestOwnerAccessToPatientRecord(t *testing.T) {
	e, _ := newTestEvaluator()
	ownerID := types.NewID()

	principal := &Principal{ID: ownerID, Role: auth.RolePatient}
	record := Record{ID: types.NewID(), OwnerID: ownerID}

	for _, op := range []Operation{OpRead, OpWrite} {
		decision, err := e.Authorize(context.Background(), principal, CollectionPatientRecord, record, op)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !decision.Allowed {
			t.Errorf("Expected owner %s to be allowed, got deny: %s", op, decision.Reason)
		}
	}
}

// TestDoctorDeniedWithoutRelation tests that a doctor with neither an active
// appointment nor consent is denied
func TestDoctorDeniedWithoutRelation(t *testing.T) {
	e, _ := newTestEvaluator()

	doctor := &Principal{ID: types.MustParseID("11111111-1111-1111-1111-111111111111"), Role: auth.RoleDoctor}
	record := Record{ID: types.NewID(), OwnerID: types.MustParseID("22222222-2222-2222-2222-222222222222")}

	decision, err := e.Authorize(context.Background(), doctor, CollectionPatientRecord, record, OpRead)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if decision.Allowed {
		t.Error("Expected deny for doctor with no appointment and no consent")
	}
}

// TestDoctorRequiresBothAppointmentAndConsent tests the conjunction of the
// two relation checks
func TestDoctorRequiresBothAppointmentAndConsent(t *testing.T) {
	doctorID := types.NewID()
	patientID := types.NewID()

	tests := []struct {
		name        string
		appointment bool
		consent     bool
		wantAllow   bool
	}{
		{"Neither", false, false, false},
		{"Appointment only", true, false, false},
		{"Consent only", false, true, false},
		{"Both", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, relations := newTestEvaluator()
			relations.SetAppointment(doctorID, patientID, tt.appointment)
			relations.SetConsent(doctorID, patientID, tt.consent)

			principal := &Principal{ID: doctorID, Role: auth.RoleDoctor}
			record := Record{ID: types.NewID(), OwnerID: patientID}

			decision, err := e.Authorize(context.Background(), principal, CollectionPatientRecord, record, OpRead)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}

			if decision.Allowed != tt.wantAllow {
				t.Errorf("Expected allowed=%v, got %v (%s)", tt.wantAllow, decision.Allowed, decision.Reason)
			}
		})
	}
}

// TestConsentRevocationFlipsDecision tests that revoking consent denies the
// very next evaluation, with no caching across the revoke
func TestConsentRevocationFlipsDecision(t *testing.T) {
	e, relations := newTestEvaluator()
	doctorID := types.NewID()
	patientID := types.NewID()

	relations.SetAppointment(doctorID, patientID, true)
	relations.SetConsent(doctorID, patientID, true)

	principal := &Principal{ID: doctorID, Role: auth.RoleDoctor}
	record := Record{ID: types.NewID(), OwnerID: patientID}

	decision, err := e.Authorize(context.Background(), principal, CollectionPatientRecord, record, OpRead)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected allow before revocation, got: %s", decision.Reason)
	}

	// Revoke consent
	relations.SetConsent(doctorID, patientID, false)

	decision, err = e.Authorize(context.Background(), principal, CollectionPatientRecord, record, OpRead)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if decision.Allowed {
		t.Error("Expected deny immediately after consent revocation")
	}
}

// TestEmergencyStaffTransportLink tests emergency staff access gated by an
// active transport
func TestEmergencyStaffTransportLink(t *testing.T) {
	e, relations := newTestEvaluator()
	staffID := types.NewID()
	patientID := types.NewID()

	principal := &Principal{ID: staffID, Role: auth.RoleEmergencyStaff}
	record := Record{ID: types.NewID(), OwnerID: patientID}

	decision, _ := e.Authorize(context.Background(), principal, CollectionPatientRecord, record, OpRead)
	if decision.Allowed {
		t.Error("Expected deny without an active transport")
	}

	relations.SetTransport(patientID, true)

	decision, _ = e.Authorize(context.Background(), principal, CollectionPatientRecord, record, OpRead)
	if !decision.Allowed {
		t.Errorf("Expected allow with an active transport, got: %s", decision.Reason)
	}

	// Writes stay owner-only regardless of the transport link
	decision, _ = e.Authorize(context.Background(), principal, CollectionPatientRecord, record, OpWrite)
	if decision.Allowed {
		t.Error("Expected write deny for emergency staff")
	}
}

// TestTransportRules tests the emergency transport collection rules
func TestTransportRules(t *testing.T) {
	e, _ := newTestEvaluator()
	patientID := types.NewID()
	record := Record{ID: types.NewID(), PatientID: patientID}

	tests := []struct {
		name      string
		principal *Principal
		op        Operation
		wantAllow bool
	}{
		{"Patient reads own", &Principal{ID: patientID, Role: auth.RolePatient}, OpRead, true},
		{"Other patient reads", &Principal{ID: types.NewID(), Role: auth.RolePatient}, OpRead, false},
		{"Emergency staff reads", &Principal{ID: types.NewID(), Role: auth.RoleEmergencyStaff}, OpRead, true},
		{"Doctor reads", &Principal{ID: types.NewID(), Role: auth.RoleDoctor}, OpRead, true},
		{"Emergency staff writes", &Principal{ID: types.NewID(), Role: auth.RoleEmergencyStaff}, OpWrite, true},
		{"Patient writes own", &Principal{ID: patientID, Role: auth.RolePatient}, OpWrite, false},
		{"Doctor writes", &Principal{ID: types.NewID(), Role: auth.RoleDoctor}, OpWrite, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := e.Authorize(context.Background(), tt.principal, CollectionTransport, record, tt.op)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if decision.Allowed != tt.wantAllow {
				t.Errorf("Expected allowed=%v, got %v (%s)", tt.wantAllow, decision.Allowed, decision.Reason)
			}
		})
	}
}

// TestAuditLogRules tests the append-only audit log policy
func TestAuditLogRules(t *testing.T) {
	e, _ := newTestEvaluator()
	record := Record{ID: types.NewID()}

	officer := &Principal{ID: types.NewID(), Role: auth.RoleComplianceOfficer}
	patient := &Principal{ID: types.NewID(), Role: auth.RolePatient}

	decision, _ := e.Authorize(context.Background(), officer, CollectionAuditLog, record, OpRead)
	if !decision.Allowed {
		t.Error("Expected compliance officer to read audit logs")
	}

	decision, _ = e.Authorize(context.Background(), patient, CollectionAuditLog, record, OpRead)
	if decision.Allowed {
		t.Error("Expected patient to be denied audit read")
	}

	decision, _ = e.Authorize(context.Background(), patient, CollectionAuditLog, Record{}, OpCreate)
	if !decision.Allowed {
		t.Error("Expected any authenticated principal to append audit entries")
	}

	decision, _ = e.Authorize(context.Background(), officer, CollectionAuditLog, record, OpWrite)
	if decision.Allowed {
		t.Error("Expected audit log updates to be denied")
	}
}

// TestDoctorProfileRules tests the public directory policy
func TestDoctorProfileRules(t *testing.T) {
	e, _ := newTestEvaluator()
	ownerID := types.NewID()
	record := Record{ID: types.NewID(), OwnerID: ownerID}

	patient := &Principal{ID: types.NewID(), Role: auth.RolePatient}
	decision, _ := e.Authorize(context.Background(), patient, CollectionDoctorProfile, record, OpRead)
	if !decision.Allowed {
		t.Error("Expected any authenticated principal to read the directory")
	}

	decision, _ = e.Authorize(context.Background(), patient, CollectionDoctorProfile, record, OpWrite)
	if decision.Allowed {
		t.Error("Expected write deny for unrelated principal")
	}

	owner := &Principal{ID: ownerID, Role: auth.RoleDoctor}
	decision, _ = e.Authorize(context.Background(), owner, CollectionDoctorProfile, record, OpWrite)
	if !decision.Allowed {
		t.Error("Expected owner to write their profile")
	}

	admin := &Principal{ID: types.NewID(), Role: auth.RoleAdmin}
	decision, _ = e.Authorize(context.Background(), admin, CollectionDoctorProfile, record, OpWrite)
	if !decision.Allowed {
		t.Error("Expected admin to write any profile")
	}
}

// TestAppointmentAndConsentLinkedAccess tests the linked-principal rule
func TestAppointmentAndConsentLinkedAccess(t *testing.T) {
	e, _ := newTestEvaluator()
	patientID := types.NewID()
	doctorID := types.NewID()
	record := Record{ID: types.NewID(), PatientID: patientID, DoctorID: doctorID}

	for _, collection := range []Collection{CollectionAppointment, CollectionConsent} {
		for _, p := range []*Principal{
			{ID: patientID, Role: auth.RolePatient},
			{ID: doctorID, Role: auth.RoleDoctor},
		} {
			decision, _ := e.Authorize(context.Background(), p, collection, record, OpRead)
			if !decision.Allowed {
				t.Errorf("Expected linked principal to read %s", collection)
			}
		}

		stranger := &Principal{ID: types.NewID(), Role: auth.RoleAdmin}
		decision, _ := e.Authorize(context.Background(), stranger, collection, record, OpRead)
		if decision.Allowed {
			t.Errorf("Expected unlinked principal to be denied on %s", collection)
		}
	}
}

// TestMalformedInput tests that bad input is an error, not a deny
func TestMalformedInput(t *testing.T) {
	e, _ := newTestEvaluator()

	if _, err := e.Authorize(context.Background(), nil, CollectionPatientRecord, Record{ID: types.NewID()}, OpRead); err == nil {
		t.Error("Expected error for missing principal")
	}

	principal := &Principal{ID: types.NewID(), Role: auth.RolePatient}
	if _, err := e.Authorize(context.Background(), principal, CollectionPatientRecord, Record{}, OpRead); err == nil {
		t.Error("Expected error for missing record id")
	}
}

// TestDefaultDeny tests that unknown collections are denied
func TestDefaultDeny(t *testing.T) {
	e, _ := newTestEvaluator()
	principal := &Principal{ID: types.NewID(), Role: auth.RoleAdmin}

	decision, err := e.Authorize(context.Background(), principal, Collection("prescriptions"), Record{ID: types.NewID()}, OpRead)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if decision.Allowed {
		t.Error("Expected default deny for unknown collection")
	}
}
