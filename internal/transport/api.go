package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/authz"
	sharedauth "github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/metrics"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Handler provides HTTP handlers for emergency transports
type Handler struct {
	repo      *Repository
	evaluator *authz.Evaluator
	bus       events.Publisher
}

// NewHandler creates a new transport handler
func NewHandler(repo *Repository, evaluator *authz.Evaluator, bus events.Publisher) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{repo: repo, evaluator: evaluator, bus: bus}
}

// Routes registers the transport routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Request)
	r.Get("/", h.List)
	r.Get("/{transportID}", h.Get)
	r.Patch("/{transportID}", h.Update)

	return r
}

// Request creates a transport request for the calling patient
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if principal.Role != string(auth.RolePatient) {
		writeError(w, errors.Forbidden("only patients request transports"))
		return
	}

	var req RequestTransport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	t := &Transport{
		ID:            types.NewID(),
		PatientUserID: principal.ID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Urgency:       req.Urgency,
		Status:        StatusRequested,
	}

	if err := h.repo.Create(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordTransportRequested(string(t.Urgency))
	h.bus.Publish(r.Context(), events.NewEvent("transport.requested", "transport-service", map[string]any{
		"transport_id": t.ID.String(),
		"urgency":      string(t.Urgency),
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusCreated, t)
}

// List lists transports. Emergency staff see the full board; patients see
// their own requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{}

	switch principal.Role {
	case string(auth.RoleEmergencyStaff), string(auth.RoleAdmin):
		// Full board
	default:
		filter.PatientUserID = &principal.ID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		s := Status(status)
		filter.Status = &s
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

	transports, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  transports,
		"total": total,
	})
}

// Get retrieves a transport
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "transportID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid transport ID"))
		return
	}

	t, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.authorize(r, principal, t, authz.OpRead)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Update changes a transport's status or assignee. Writable only by
// emergency staff.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "transportID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid transport ID"))
		return
	}

	t, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.authorize(r, principal, t, authz.OpWrite)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	from := t.Status
	if req.Status != nil {
		if err := t.Transition(*req.Status); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.AssignedTo != nil {
		t.AssignedTo = req.AssignedTo
	}

	if err := h.repo.Update(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}

	if req.Status != nil {
		h.bus.Publish(r.Context(), events.NewEvent("transport.status_changed", "transport-service", map[string]any{
			"transport_id":    t.ID.String(),
			"patient_user_id": t.PatientUserID.String(),
			"from":            string(from),
			"to":              string(t.Status),
		}).WithActor(principal.ID, principal.Role))
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) authorize(r *http.Request, principal *sharedauth.Principal, t *Transport, op authz.Operation) (authz.Decision, error) {
	return h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionTransport,
		authz.Record{ID: t.ID, PatientID: t.PatientUserID},
		op,
	)
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
