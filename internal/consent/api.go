package consent

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/telehealth/internal/auth"
	sharedauth "github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Handler provides HTTP handlers for consents
type Handler struct {
	repo *Repository
	bus  events.Publisher
}

// NewHandler creates a new consent handler
func NewHandler(repo *Repository, bus events.Publisher) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the consent routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Grant)
	r.Get("/", h.List)
	r.Post("/{consentID}/revoke", h.Revoke)

	return r
}

// Grant grants record access to a doctor. Granting again after a revoke
// reactivates the consent.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if principal.Role != string(auth.RolePatient) {
		writeError(w, errors.Forbidden("only patients grant consent"))
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	c := &Consent{
		ID:            types.NewID(),
		PatientUserID: principal.ID,
		DoctorUserID:  req.DoctorUserID,
	}

	if err := h.repo.Grant(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("consent.granted", "consent-service", map[string]any{
		"consent_id":     c.ID.String(),
		"doctor_user_id": c.DoctorUserID.String(),
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusCreated, c)
}

// Revoke revokes a consent. Takes effect on the next authorization decision.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "consentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid consent ID"))
		return
	}

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Revoke(r.Context(), id, principal.ID); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("consent.revoked", "consent-service", map[string]any{
		"consent_id":     id.String(),
		"doctor_user_id": c.DoctorUserID.String(),
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// List lists the caller's consents: grants they made as a patient, or
// grants made to them as a doctor.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{}
	switch principal.Role {
	case string(auth.RoleDoctor):
		filter.DoctorUserID = &principal.ID
	default:
		filter.PatientUserID = &principal.ID
	}

	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			filter.Offset = o
		}
	}

	consents, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  consents,
		"total": total,
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
