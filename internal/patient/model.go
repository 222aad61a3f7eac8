// Package patient manages patient medical records. Every read of a record
// by anyone other than its owner is relation-gated and audited.
package patient

import (
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// HistoryItem is a single entry in a patient's medical history
type HistoryItem struct {
	Date        string `json:"date"`
	Condition   string `json:"condition"`
	Description string `json:"description,omitempty"`
	TreatedBy   string `json:"treated_by,omitempty"`
}

// Record represents a patient medical record
type Record struct {
	ID     types.ID  `json:"id"`
	UserID types.ID  `json:"user_id"`
	MRN    types.MRN `json:"mrn"`

	FullName    string     `json:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	BloodType   string     `json:"blood_type,omitempty"`

	Allergies      []string      `json:"allergies"`
	MedicalHistory []HistoryItem `json:"medical_history"`

	Contact types.ContactInfo `json:"contact"`
	Address types.Address     `json:"address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaskedMRN returns the record's MRN with only the last digits visible
func (r *Record) MaskedMRN() string {
	return r.MRN.Masked()
}

// CreateRecordRequest is the request to create a medical record
type CreateRecordRequest struct {
	FullName    string     `json:"full_name" validate:"required,min=1,max=255"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender"`
	BloodType   string     `json:"blood_type"`

	Allergies      []string      `json:"allergies"`
	MedicalHistory []HistoryItem `json:"medical_history"`

	Contact types.ContactInfo `json:"contact"`
	Address types.Address     `json:"address"`
}

// Validate checks the create request
func (r *CreateRecordRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	if r.FullName == "" {
		return errors.Validation("full name is required")
	}
	if r.BloodType != "" && !validBloodType(r.BloodType) {
		return errors.Validation("invalid blood type")
	}
	return nil
}

func validBloodType(bt string) bool {
	switch bt {
	case "A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-":
		return true
	}
	return false
}

// UpdateRecordRequest is the request to update a medical record
type UpdateRecordRequest struct {
	FullName       *string            `json:"full_name,omitempty"`
	DateOfBirth    *time.Time         `json:"date_of_birth,omitempty"`
	Gender         *string            `json:"gender,omitempty"`
	BloodType      *string            `json:"blood_type,omitempty"`
	Allergies      *[]string          `json:"allergies,omitempty"`
	MedicalHistory *[]HistoryItem     `json:"medical_history,omitempty"`
	Contact        *types.ContactInfo `json:"contact,omitempty"`
	Address        *types.Address     `json:"address,omitempty"`
}

// Apply merges the update into an existing record
func (r *UpdateRecordRequest) Apply(record *Record) error {
	if r.FullName != nil {
		name := strings.TrimSpace(*r.FullName)
		if name == "" {
			return errors.Validation("full name cannot be empty")
		}
		record.FullName = name
	}
	if r.DateOfBirth != nil {
		record.DateOfBirth = r.DateOfBirth
	}
	if r.Gender != nil {
		record.Gender = *r.Gender
	}
	if r.BloodType != nil {
		if *r.BloodType != "" && !validBloodType(*r.BloodType) {
			return errors.Validation("invalid blood type")
		}
		record.BloodType = *r.BloodType
	}
	if r.Allergies != nil {
		record.Allergies = *r.Allergies
	}
	if r.MedicalHistory != nil {
		record.MedicalHistory = *r.MedicalHistory
	}
	if r.Contact != nil {
		record.Contact = *r.Contact
	}
	if r.Address != nil {
		record.Address = *r.Address
	}
	return nil
}
