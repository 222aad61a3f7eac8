// Package doctor manages the doctor directory.
package doctor

import (
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Profile represents a doctor's directory entry
type Profile struct {
	ID        types.ID `json:"id"`
	UserID    types.ID `json:"user_id"`
	FullName  string   `json:"full_name"`
	Specialty string   `json:"specialty"`
	Bio       string   `json:"bio,omitempty"`

	Location types.Address     `json:"location"`
	Contact  types.ContactInfo `json:"contact"`

	// Accepting indicates whether the doctor is accepting new patients
	Accepting bool `json:"accepting"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProfileRequest is the request to create a directory entry
type CreateProfileRequest struct {
	FullName  string            `json:"full_name" validate:"required,min=1,max=255"`
	Specialty string            `json:"specialty" validate:"required,min=1,max=128"`
	Bio       string            `json:"bio"`
	Location  types.Address     `json:"location"`
	Contact   types.ContactInfo `json:"contact"`
	Accepting *bool             `json:"accepting,omitempty"`
}

// Validate checks the create request
func (r *CreateProfileRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Specialty = strings.TrimSpace(r.Specialty)

	if r.FullName == "" {
		return errors.Validation("full name is required")
	}
	if r.Specialty == "" {
		return errors.Validation("specialty is required")
	}
	return nil
}

// UpdateProfileRequest is the request to update a directory entry
type UpdateProfileRequest struct {
	FullName  *string            `json:"full_name,omitempty"`
	Specialty *string            `json:"specialty,omitempty"`
	Bio       *string            `json:"bio,omitempty"`
	Location  *types.Address     `json:"location,omitempty"`
	Contact   *types.ContactInfo `json:"contact,omitempty"`
	Accepting *bool              `json:"accepting,omitempty"`
}

// Apply merges the update into an existing profile
func (r *UpdateProfileRequest) Apply(p *Profile) {
	if r.FullName != nil {
		p.FullName = strings.TrimSpace(*r.FullName)
	}
	if r.Specialty != nil {
		p.Specialty = strings.TrimSpace(*r.Specialty)
	}
	if r.Bio != nil {
		p.Bio = *r.Bio
	}
	if r.Location != nil {
		p.Location = *r.Location
	}
	if r.Contact != nil {
		p.Contact = *r.Contact
	}
	if r.Accepting != nil {
		p.Accepting = *r.Accepting
	}
}

// ListFilter defines filters for listing the directory
type ListFilter struct {
	Specialty string `json:"specialty,omitempty"`
	Accepting *bool  `json:"accepting,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}
