package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/caremesh/telehealth/internal/shared/config"
	"github.com/caremesh/telehealth/internal/shared/types"
)

type contextKey string

const (
	PrincipalContextKey contextKey = "principal"
)

// Principal represents the authenticated actor from JWT claims
type Principal struct {
	ID          types.ID `json:"sub"`
	Email       string   `json:"email"`
	Role        string   `json:"role"` // patient, doctor, emergency_staff, compliance_officer, admin
	DisplayName string   `json:"name"`
	SessionID   string   `json:"session_id"`
}

// Claims extends JWT claims with platform-specific data
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"name"`
	SessionID   string `json:"session_id"`
}

// IssueToken creates a signed JWT for a principal
func IssueToken(cfg config.AuthConfig, p *Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.TokenTTLHours) * time.Hour)),
		},
		Email:       p.Email,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		SessionID:   p.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := parts[1]

			token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})

			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			principal := &Principal{
				ID:          types.ID(claims.Subject),
				Email:       claims.Email,
				Role:        claims.Role,
				DisplayName: claims.DisplayName,
				SessionID:   claims.SessionID,
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the principal from request context
func GetPrincipal(ctx context.Context) *Principal {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// WithPrincipal returns a context carrying the given principal.
// Used by the static demo mode and by tests.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// RequireRoles creates middleware that requires one of the given roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			allowed := false
			for _, role := range roles {
				if p.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HasRole checks if the principal has a specific role
func (p *Principal) HasRole(role string) bool {
	return p.Role == role
}

// IsAdmin checks if the principal is an admin
func (p *Principal) IsAdmin() bool {
	return p.Role == "admin"
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
