package doctor

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
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Handler provides HTTP handlers for the doctor directory
type Handler struct {
	repo      *Repository
	evaluator *authz.Evaluator
	bus       events.Publisher
}

// NewHandler creates a new doctor handler
func NewHandler(repo *Repository, evaluator *authz.Evaluator, bus events.Publisher) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{repo: repo, evaluator: evaluator, bus: bus}
}

// Routes registers the directory routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{doctorID}", h.Get)
	r.Put("/{doctorID}", h.Update)

	return r
}

// List lists directory entries. The directory is readable by any
// authenticated principal.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}

	if specialty := r.URL.Query().Get("specialty"); specialty != "" {
		filter.Specialty = specialty
	}
	if accepting := r.URL.Query().Get("accepting"); accepting != "" {
		v := accepting == "true"
		filter.Accepting = &v
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter.Search = search
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

	profiles, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  profiles,
		"total": total,
	})
}

// Get retrieves a single directory entry
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid doctor ID"))
		return
	}

	profile, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Create creates the caller's directory entry
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	profile := &Profile{
		ID:        types.NewID(),
		UserID:    principal.ID,
		FullName:  req.FullName,
		Specialty: req.Specialty,
		Bio:       req.Bio,
		Location:  req.Location,
		Contact:   req.Contact,
		Accepting: true,
	}
	if req.Accepting != nil {
		profile.Accepting = *req.Accepting
	}

	if err := h.repo.Create(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// Update updates a directory entry. Writable only by its owner or an admin.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid doctor ID"))
		return
	}

	profile, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionDoctorProfile,
		authz.Record{ID: profile.ID, OwnerID: profile.UserID},
		authz.OpWrite,
	)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	req.Apply(profile)

	if profile.FullName == "" || profile.Specialty == "" {
		writeError(w, errors.Validation("full name and specialty are required"))
		return
	}

	if err := h.repo.Update(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
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
