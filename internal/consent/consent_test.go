package consent

import (
	"testing"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestGrantRequestValidation tests grant input validation
func TestGrantRequestValidation(t *testing.T) {
	valid := GrantRequest{DoctorUserID: types.NewID()}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	missing := GrantRequest{}
	if err := missing.Validate(); err == nil {
		t.Error("Expected validation error for missing doctor")
	}
}
