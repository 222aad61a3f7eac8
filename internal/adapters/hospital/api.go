package hospital

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	sharedauth "github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/errors"
)

// Handler serves the hospital directory
type Handler struct {
	registry *Registry
}

// NewHandler creates a new hospital directory handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes registers the hospital routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)

	return r
}

// List returns hospitals, optionally filtered by city and emergency
// capability. Readable by any authenticated principal.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	city := r.URL.Query().Get("city")

	var emergency *bool
	if raw := r.URL.Query().Get("emergency"); raw != "" {
		v := raw == "true"
		emergency = &v
	}

	hospitals, err := h.registry.Find(r.Context(), city, emergency)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  hospitals,
		"total": len(hospitals),
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
