// Package authz implements the per-record authorization rules. The rules
// were previously expressed as declarative document-store security rules;
// here they are an explicit, database-independent evaluator.
package authz

import (
	"context"
	"fmt"

	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/shared/metrics"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Operation is the access being requested.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpCreate Operation = "create"
)

// Collection identifies the kind of record being accessed.
type Collection string

const (
	CollectionPrincipal     Collection = "users"
	CollectionDoctorProfile Collection = "doctors"
	CollectionPatientRecord Collection = "patients"
	CollectionAppointment   Collection = "appointments"
	CollectionConsent       Collection = "patient_consents"
	CollectionTransport     Collection = "emergency_transports"
	CollectionAuditLog      Collection = "audit_logs"
)

// Principal is the authenticated actor requesting access.
type Principal struct {
	ID   types.ID
	Role auth.Role
}

// Record carries the authorization-relevant fields of the target record.
// OwnerID is the owning principal; PatientID/DoctorID are the linked
// principals on relational records (appointments, consents, transports).
type Record struct {
	ID        types.ID
	OwnerID   types.ID
	PatientID types.ID
	DoctorID  types.ID
}

// Decision is the evaluator's verdict. Deny is a normal return value, not
// an error; Reason explains the outcome for logging and responses.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Snapshot holds the relation state backing one authorization decision.
// It is read once per decision and never cached across decisions: consent
// can be revoked at any time, and a stale allow would be a privacy
// violation.
type Snapshot struct {
	// ActiveAppointment is true iff an appointment links the doctor and
	// patient with status scheduled or in_progress.
	ActiveAppointment bool
	// ActiveConsent is true iff a consent record between the pair exists
	// with is_active true.
	ActiveConsent bool
	// ActiveTransport is true iff the patient has an emergency transport
	// that is not yet completed or cancelled.
	ActiveTransport bool
}

// RelationSource loads the relation snapshot for a (principal, patient)
// pair against a single consistent view of the store.
type RelationSource interface {
	Snapshot(ctx context.Context, principalID, patientID types.ID) (Snapshot, error)
}

// Evaluator decides read/write permission per collection per principal.
// First matching rule wins; the default is deny.
type Evaluator struct {
	relations RelationSource
}

// NewEvaluator creates an evaluator backed by the given relation source.
func NewEvaluator(relations RelationSource) *Evaluator {
	return &Evaluator{relations: relations}
}

// Authorize returns the decision for (principal, collection, record, op).
// It returns an error only for malformed input; a legitimate deny is a
// normal Decision.
func (e *Evaluator) Authorize(ctx context.Context, principal *Principal, collection Collection, record Record, op Operation) (Decision, error) {
	if principal == nil || principal.ID.IsZero() {
		return Decision{}, fmt.Errorf("authorize: missing principal")
	}
	if record.ID.IsZero() && op != OpCreate {
		return Decision{}, fmt.Errorf("authorize: missing record id")
	}

	decision, err := e.evaluate(ctx, principal, collection, record, op)
	if err != nil {
		return Decision{}, err
	}

	metrics.RecordAuthorizationDecision(string(collection), string(op), decision.Allowed)
	return decision, nil
}

func (e *Evaluator) evaluate(ctx context.Context, principal *Principal, collection Collection, record Record, op Operation) (Decision, error) {
	switch collection {
	case CollectionPrincipal:
		if principal.ID == record.ID || principal.ID == record.OwnerID {
			return allow("own account"), nil
		}
		return deny("not the account owner"), nil

	case CollectionDoctorProfile:
		if op == OpRead {
			return allow("doctor directory is readable by any authenticated principal"), nil
		}
		if principal.ID == record.OwnerID {
			return allow("own profile"), nil
		}
		if principal.Role == auth.RoleAdmin {
			return allow("admin"), nil
		}
		return deny("profile writable only by its owner or an admin"), nil

	case CollectionPatientRecord:
		return e.evaluatePatientRecord(ctx, principal, record, op)

	case CollectionAppointment, CollectionConsent:
		if principal.ID == record.PatientID || principal.ID == record.DoctorID {
			return allow("linked principal"), nil
		}
		return deny("only the linked patient and doctor have access"), nil

	case CollectionTransport:
		if op == OpRead {
			if principal.ID == record.PatientID {
				return allow("own transport request"), nil
			}
			if principal.Role == auth.RoleEmergencyStaff || principal.Role == auth.RoleDoctor {
				return allow(string(principal.Role)), nil
			}
			return deny("no transport relation"), nil
		}
		if principal.Role == auth.RoleEmergencyStaff {
			return allow("emergency staff"), nil
		}
		return deny("transports writable only by emergency staff"), nil

	case CollectionAuditLog:
		if op == OpRead {
			if principal.Role == auth.RoleComplianceOfficer {
				return allow("compliance officer"), nil
			}
			return deny("audit log readable only by compliance officers"), nil
		}
		if op == OpCreate {
			return allow("audit log is open for appends"), nil
		}
		return deny("audit log is append-only"), nil

	default:
		return deny(fmt.Sprintf("unknown collection %q", collection)), nil
	}
}

// evaluatePatientRecord applies the consent- and relation-gated rules for
// patient records. The relation snapshot is loaded once and used for the
// whole decision to avoid a time-of-check/time-of-use gap.
func (e *Evaluator) evaluatePatientRecord(ctx context.Context, principal *Principal, record Record, op Operation) (Decision, error) {
	if principal.ID == record.OwnerID {
		return allow("record owner"), nil
	}

	if op != OpRead {
		return deny("patient record writable only by its owner"), nil
	}

	switch principal.Role {
	case auth.RoleDoctor:
		snap, err := e.snapshot(ctx, principal.ID, record.OwnerID)
		if err != nil {
			return Decision{}, err
		}
		if snap.ActiveAppointment && snap.ActiveConsent {
			return allow("active appointment and consent"), nil
		}
		if !snap.ActiveAppointment {
			return deny("no active appointment with this patient"), nil
		}
		return deny("no active consent from this patient"), nil

	case auth.RoleEmergencyStaff:
		snap, err := e.snapshot(ctx, principal.ID, record.OwnerID)
		if err != nil {
			return Decision{}, err
		}
		if snap.ActiveTransport {
			return allow("active emergency transport"), nil
		}
		return deny("no active emergency transport for this patient"), nil

	default:
		return deny("no relation to this patient record"), nil
	}
}

func (e *Evaluator) snapshot(ctx context.Context, principalID, patientID types.ID) (Snapshot, error) {
	if e.relations == nil {
		return Snapshot{}, nil
	}
	snap, err := e.relations.Snapshot(ctx, principalID, patientID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("authorize: failed to load relation snapshot: %w", err)
	}
	return snap, nil
}
