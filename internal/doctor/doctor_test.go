package doctor

import (
	"testing"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestCreateProfileValidation tests directory entry validation
func TestCreateProfileValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateProfileRequest
		wantErr bool
	}{
		{"Valid", CreateProfileRequest{FullName: "Dr. Jane Smith", Specialty: "General Medicine"}, false},
		{"Missing name", CreateProfileRequest{Specialty: "Cardiology"}, true},
		{"Missing specialty", CreateProfileRequest{FullName: "Dr. John Doe"}, true},
		{"Whitespace only", CreateProfileRequest{FullName: "   ", Specialty: "Cardiology"}, true},
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

// TestUpdateApply tests partial updates
func TestUpdateApply(t *testing.T) {
	profile := &Profile{
		ID:        types.NewID(),
		UserID:    types.NewID(),
		FullName:  "Dr. Jane Smith",
		Specialty: "General Medicine",
		Accepting: true,
	}

	newSpecialty := "Cardiology"
	accepting := false
	req := UpdateProfileRequest{
		Specialty: &newSpecialty,
		Accepting: &accepting,
	}

	req.Apply(profile)

	if profile.FullName != "Dr. Jane Smith" {
		t.Errorf("Expected name unchanged, got %q", profile.FullName)
	}
	if profile.Specialty != "Cardiology" {
		t.Errorf("Expected updated specialty, got %q", profile.Specialty)
	}
	if profile.Accepting {
		t.Error("Expected accepting to be false")
	}
}
