package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestStaticSessionSignIn tests the sign-in / current / sign-out cycle
func TestStaticSessionSignIn(t *testing.T) {
	store := NewStaticSessionStore()

	if store.SignedIn() {
		t.Error("Expected new store to be logged out")
	}

	if _, err := store.Current(); err != ErrNoSession {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}

	user := StaticSessionUser{
		ID:          types.NewID(),
		Email:       "demo@example.com",
		Role:        RolePatient,
		DisplayName: "Demo Patient",
	}

	if err := store.SignIn(user); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	current, err := store.Current()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if current.ID != user.ID {
		t.Errorf("Expected ID %s, got %s", user.ID, current.ID)
	}

	if current.Role != RolePatient {
		t.Errorf("Expected role patient, got %s", current.Role)
	}

	if current.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set on sign-in")
	}

	if err := store.SignOut(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if store.SignedIn() {
		t.Error("Expected store to be logged out after sign-out")
	}
}

// TestStaticSessionValidation tests sign-in input validation
func TestStaticSessionValidation(t *testing.T) {
	store := NewStaticSessionStore()

	tests := []struct {
		name string
		user StaticSessionUser
	}{
		{
			name: "Missing ID",
			user: StaticSessionUser{Role: RolePatient},
		},
		{
			name: "Unknown role",
			user: StaticSessionUser{ID: types.NewID(), Role: Role("superuser")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SignIn(tt.user); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

// TestFileSessionStorePersistence tests that the session survives a reload
func TestFileSessionStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store := NewFileSessionStore(path)
	user := StaticSessionUser{
		ID:          types.NewID(),
		Email:       "demo@example.com",
		Role:        RoleDoctor,
		DisplayName: "Demo Doctor",
	}

	if err := store.SignIn(user); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Simulate a reload by constructing a fresh store over the same file
	reloaded := NewFileSessionStore(path)
	current, err := reloaded.Current()
	if err != nil {
		t.Fatalf("Expected session to survive reload, got: %v", err)
	}

	if current.ID != user.ID {
		t.Errorf("Expected ID %s, got %s", user.ID, current.ID)
	}

	// Sign-out removes the file
	if err := reloaded.SignOut(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected session file to be removed on sign-out")
	}
}

// TestRoleValidity tests the role whitelist
func TestRoleValidity(t *testing.T) {
	for _, r := range AllRoles {
		if !r.IsValid() {
			t.Errorf("Expected role %s to be valid", r)
		}
	}

	if Role("nurse").IsValid() {
		t.Error("Expected unknown role to be invalid")
	}
}

// TestHasPermission tests the role permission table
func TestHasPermission(t *testing.T) {
	if !HasPermission(RoleComplianceOfficer, PermAuditRead) {
		t.Error("Expected compliance officer to read audit logs")
	}

	if HasPermission(RolePatient, PermAuditRead) {
		t.Error("Expected patient to be denied audit read")
	}

	if !HasPermission(RoleEmergencyStaff, PermTransportUpdate) {
		t.Error("Expected emergency staff to update transports")
	}

	if HasPermission(RoleDoctor, PermTransportUpdate) {
		t.Error("Expected doctor to be denied transport update")
	}
}
