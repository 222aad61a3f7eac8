package principal

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/config"
	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Handler provides HTTP handlers for accounts and authentication
type Handler struct {
	repo *Repository
	cfg  config.AuthConfig
	bus  events.Publisher
}

// NewHandler creates a new principal handler
func NewHandler(repo *Repository, cfg config.AuthConfig, bus events.Publisher) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{repo: repo, cfg: cfg, bus: bus}
}

// Routes registers the account routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.cfg))
		r.Get("/me", h.Me)
	})

	return r
}

// Register creates a new account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, errors.Internal("failed to hash password"))
		return
	}

	p := &Principal{
		ID:           types.NewID(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		DisplayName:  req.DisplayName,
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.issueToken(p)
	if err != nil {
		writeError(w, errors.Internal("failed to issue token"))
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("auth.register", "principal-service", map[string]any{
		"id":    p.ID.String(),
		"email": p.Email,
		"role":  string(p.Role),
	}).WithActor(p.ID, string(p.Role)))

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, Principal: p})
}

// Login authenticates an account.
// Failed attempts report the same error for a missing account and a wrong
// password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	p, err := h.repo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.bus.Publish(r.Context(), events.NewEvent("auth.login_failed", "principal-service", map[string]any{
			"email": req.Email,
		}))
		writeError(w, errors.Unauthorized("invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
		h.bus.Publish(r.Context(), events.NewEvent("auth.login_failed", "principal-service", map[string]any{
			"email": req.Email,
		}).WithActor(p.ID, string(p.Role)))
		writeError(w, errors.Unauthorized("invalid credentials"))
		return
	}

	token, err := h.issueToken(p)
	if err != nil {
		writeError(w, errors.Internal("failed to issue token"))
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("auth.login", "principal-service", map[string]any{
		"id": p.ID.String(),
	}).WithActor(p.ID, string(p.Role)))

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, Principal: p})
}

// Me returns the authenticated account
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	p, err := h.repo.Get(r.Context(), principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) issueToken(p *Principal) (string, error) {
	return auth.IssueToken(h.cfg, &auth.Principal{
		ID:          p.ID,
		Email:       p.Email,
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
