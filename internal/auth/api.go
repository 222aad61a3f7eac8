package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// SessionHandler exposes the static demo session over HTTP. There is no
// credential check: the demo surface has no real identities and the session
// exists only so demo clients can act as a chosen role.
type SessionHandler struct {
	store *StaticSessionStore
}

// NewSessionHandler creates a handler backed by the given store
func NewSessionHandler(store *StaticSessionStore) *SessionHandler {
	return &SessionHandler{store: store}
}

// Routes registers the session routes
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.SignIn)
	r.Get("/", h.Current)
	r.Delete("/", h.SignOut)

	return r
}

// SignIn creates the demo session for the requested role
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Role        Role   `json:"role"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if !req.Role.IsValid() {
		writeError(w, errors.Validation("unknown role"))
		return
	}

	user := StaticSessionUser{
		ID:          types.NewID(),
		Email:       req.Email,
		Role:        req.Role,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.SignIn(user); err != nil {
		writeError(w, errors.Internal("failed to store session"))
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Current returns the active demo session user
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.Current()
	if err != nil {
		writeError(w, errors.Unauthorized("no active session"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// SignOut removes the demo session
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SignOut(); err != nil {
		writeError(w, errors.Internal("failed to clear session"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
