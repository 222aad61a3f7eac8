// Package consent manages patient-granted access consents. Consent is one
// leg of the relation that lets a doctor read a patient's record; revoking
// it takes effect on the very next authorization decision.
package consent

import (
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Consent represents a patient's grant of record access to a doctor
type Consent struct {
	ID            types.ID `json:"id"`
	PatientUserID types.ID `json:"patient_user_id"`
	DoctorUserID  types.ID `json:"doctor_user_id"`

	IsActive  bool       `json:"is_active"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// GrantRequest is the request to grant consent to a doctor
type GrantRequest struct {
	DoctorUserID types.ID `json:"doctor_user_id" validate:"required"`
}

// Validate checks the grant request
func (r *GrantRequest) Validate() error {
	if r.DoctorUserID.IsZero() {
		return errors.Validation("doctor is required")
	}
	return nil
}

// ListFilter defines filters for listing consents
type ListFilter struct {
	PatientUserID *types.ID `json:"patient_user_id,omitempty"`
	DoctorUserID  *types.ID `json:"doctor_user_id,omitempty"`
	ActiveOnly    bool      `json:"active_only,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}
