package patient

import (
	"testing"
	"time"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestCreateRecordValidation tests record input validation
func TestCreateRecordValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRecordRequest
		wantErr bool
	}{
		{"Valid minimal", CreateRecordRequest{FullName: "Alice Walker"}, false},
		{"Valid with blood type", CreateRecordRequest{FullName: "Alice Walker", BloodType: "O-"}, false},
		{"Missing name", CreateRecordRequest{}, true},
		{"Bad blood type", CreateRecordRequest{FullName: "Alice Walker", BloodType: "Q+"}, true},
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

// TestUpdateRecordApply tests partial updates
func TestUpdateRecordApply(t *testing.T) {
	dob := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{
		ID:        types.NewID(),
		UserID:    types.NewID(),
		FullName:  "Alice Walker",
		BloodType: "O-",
		Allergies: []string{"penicillin"},
	}

	newAllergies := []string{"penicillin", "latex"}
	req := UpdateRecordRequest{
		DateOfBirth: &dob,
		Allergies:   &newAllergies,
	}

	if err := req.Apply(rec); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rec.FullName != "Alice Walker" {
		t.Errorf("Expected name unchanged, got %q", rec.FullName)
	}
	if rec.DateOfBirth == nil || !rec.DateOfBirth.Equal(dob) {
		t.Error("Expected date of birth to be set")
	}
	if len(rec.Allergies) != 2 {
		t.Errorf("Expected 2 allergies, got %d", len(rec.Allergies))
	}
}

// TestUpdateRecordRejectsEmptyName tests that a name cannot be blanked
func TestUpdateRecordRejectsEmptyName(t *testing.T) {
	rec := &Record{FullName: "Alice Walker"}
	empty := "  "
	req := UpdateRecordRequest{FullName: &empty}

	if err := req.Apply(rec); err == nil {
		t.Error("Expected error for empty name")
	}
	if rec.FullName != "Alice Walker" {
		t.Errorf("Expected name unchanged, got %q", rec.FullName)
	}
}

// TestUpdateRecordRejectsBadBloodType tests blood type validation on update
func TestUpdateRecordRejectsBadBloodType(t *testing.T) {
	rec := &Record{FullName: "Alice Walker", BloodType: "O-"}
	bad := "XX"
	req := UpdateRecordRequest{BloodType: &bad}

	if err := req.Apply(rec); err == nil {
		t.Error("Expected error for invalid blood type")
	}
}

// TestMRNAssignment tests the generated MRN round-trips through validation
func TestMRNAssignment(t *testing.T) {
	for seq := 1; seq <= 20; seq++ {
		mrn, err := types.NewMRN(mrnRegistryCode, seq)
		if err != nil {
			t.Fatalf("Expected no error for seq %d, got: %v", seq, err)
		}
		if !mrn.IsValid() {
			t.Errorf("Expected valid check digit for %s", mrn)
		}
		if _, err := types.ParseMRN(mrn.String()); err != nil {
			t.Errorf("Expected generated MRN to parse, got: %v", err)
		}
	}
}

// TestMRNDistinctPerSequence tests that distinct sequence numbers never
// collide. Registration relies on this: the database sequence hands out
// unique numbers, and the mapping to MRNs must keep them unique.
func TestMRNDistinctPerSequence(t *testing.T) {
	seen := make(map[types.MRN]int)
	for seq := 1; seq <= 500; seq++ {
		mrn, err := types.NewMRN(mrnRegistryCode, seq)
		if err != nil {
			t.Fatalf("Expected no error for seq %d, got: %v", seq, err)
		}
		if prev, ok := seen[mrn]; ok {
			t.Fatalf("Sequences %d and %d produced the same MRN %s", prev, seq, mrn)
		}
		seen[mrn] = seq
	}
}

// TestMaskedMRN tests that display masking keeps only the last digits
func TestMaskedMRN(t *testing.T) {
	mrn, err := types.NewMRN("10", 1234567)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	rec := &Record{MRN: mrn}
	masked := rec.MaskedMRN()

	if len(masked) != 10 {
		t.Errorf("Expected 10-character mask, got %q", masked)
	}
	if masked[:6] != "******" {
		t.Errorf("Expected leading digits masked, got %q", masked)
	}
	if masked[6:] != mrn.String()[6:] {
		t.Errorf("Expected trailing digits visible, got %q", masked)
	}
}
