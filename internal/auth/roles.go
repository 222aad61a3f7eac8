// Package auth provides authentication and authorization types.
package auth

// Role represents a user role in the system. Roles are assigned at
// registration and never change afterward.
type Role string

const (
	RolePatient           Role = "patient"
	RoleDoctor            Role = "doctor"
	RoleEmergencyStaff    Role = "emergency_staff"
	RoleComplianceOfficer Role = "compliance_officer"
	RoleAdmin             Role = "admin"
)

// AllRoles lists every valid role.
var AllRoles = []Role{
	RolePatient,
	RoleDoctor,
	RoleEmergencyStaff,
	RoleComplianceOfficer,
	RoleAdmin,
}

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Permission represents a specific action on a resource.
type Permission string

const (
	PermAppointmentCreate Permission = "appointment.create"
	PermAppointmentRead   Permission = "appointment.read"
	PermAppointmentUpdate Permission = "appointment.update"

	PermPatientRecordRead   Permission = "patient_record.read"
	PermPatientRecordUpdate Permission = "patient_record.update"

	PermTransportRequest Permission = "transport.request"
	PermTransportRead    Permission = "transport.read"
	PermTransportUpdate  Permission = "transport.update"

	PermDocumentUpload Permission = "document.upload"
	PermDocumentRead   Permission = "document.read"

	PermConsentGrant  Permission = "consent.grant"
	PermConsentRevoke Permission = "consent.revoke"

	PermAuditRead  Permission = "audit.read"
	PermAuditWrite Permission = "audit.write"

	PermDirectoryManage Permission = "directory.manage"
)

// RolePermissions maps roles to their default permissions. The fine-grained
// per-record decisions (ownership, consent, appointment relation) are made by
// the authz evaluator; this table covers coarse operation access.
var RolePermissions = map[Role][]Permission{
	RolePatient: {
		PermAppointmentCreate, PermAppointmentRead, PermAppointmentUpdate,
		PermPatientRecordRead, PermPatientRecordUpdate,
		PermTransportRequest, PermTransportRead,
		PermDocumentUpload, PermDocumentRead,
		PermConsentGrant, PermConsentRevoke,
		PermAuditWrite,
	},
	RoleDoctor: {
		PermAppointmentRead, PermAppointmentUpdate,
		PermPatientRecordRead,
		PermTransportRead,
		PermDocumentRead,
		PermAuditWrite,
	},
	RoleEmergencyStaff: {
		PermTransportRead, PermTransportUpdate,
		PermPatientRecordRead,
		PermAuditWrite,
	},
	RoleComplianceOfficer: {
		PermAuditRead, PermAuditWrite,
	},
	RoleAdmin: {
		PermDirectoryManage,
		PermAuditWrite,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
