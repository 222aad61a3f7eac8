// Package principal manages user accounts and authentication.
package principal

import (
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Principal represents a user account
type Principal struct {
	ID           types.ID  `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	DisplayName  string    `json:"display_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest is the request to create an account
type RegisterRequest struct {
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password" validate:"required,min=8"`
	Role        auth.Role `json:"role" validate:"required"`
	DisplayName string    `json:"display_name" validate:"required,min=1,max=255"`
}

// Validate checks the registration request
func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DisplayName = strings.TrimSpace(r.DisplayName)

	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return errors.Validation("valid email is required")
	}
	if len(r.Password) < 8 {
		return errors.Validation("password must be at least 8 characters")
	}
	if !r.Role.IsValid() {
		return errors.Validation("invalid role")
	}
	if r.DisplayName == "" {
		return errors.Validation("display name is required")
	}
	return nil
}

// LoginRequest is the request to authenticate
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries a signed token and the authenticated account
type AuthResponse struct {
	Token     string     `json:"token"`
	Principal *Principal `json:"principal"`
}
