package principal

import (
	"testing"

	"github.com/caremesh/telehealth/internal/auth"
)

// TestRegisterRequestValidation tests registration input validation
func TestRegisterRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{
			name: "Valid patient",
			req: RegisterRequest{
				Email:       "alice@example.com",
				Password:    "correct-horse",
				Role:        auth.RolePatient,
				DisplayName: "Alice",
			},
			wantErr: false,
		},
		{
			name: "Missing email",
			req: RegisterRequest{
				Password:    "correct-horse",
				Role:        auth.RolePatient,
				DisplayName: "Alice",
			},
			wantErr: true,
		},
		{
			name: "Short password",
			req: RegisterRequest{
				Email:       "alice@example.com",
				Password:    "short",
				Role:        auth.RolePatient,
				DisplayName: "Alice",
			},
			wantErr: true,
		},
		{
			name: "Unknown role",
			req: RegisterRequest{
				Email:       "alice@example.com",
				Password:    "correct-horse",
				Role:        auth.Role("superuser"),
				DisplayName: "Alice",
			},
			wantErr: true,
		},
		{
			name: "Missing display name",
			req: RegisterRequest{
				Email:    "alice@example.com",
				Password: "correct-horse",
				Role:     auth.RoleDoctor,
			},
			wantErr: true,
		},
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

// TestRegisterRequestNormalizesEmail tests that emails are lowercased and
// trimmed before use
func TestRegisterRequestNormalizesEmail(t *testing.T) {
	req := RegisterRequest{
		Email:       "  Alice@Example.COM ",
		Password:    "correct-horse",
		Role:        auth.RolePatient,
		DisplayName: " Alice ",
	}

	if err := req.Validate(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if req.Email != "alice@example.com" {
		t.Errorf("Expected normalized email, got %q", req.Email)
	}
	if req.DisplayName != "Alice" {
		t.Errorf("Expected trimmed display name, got %q", req.DisplayName)
	}
}
