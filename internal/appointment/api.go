package appointment

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

// Handler provides HTTP handlers for appointments
type Handler struct {
	repo      *Repository
	evaluator *authz.Evaluator
	bus       events.Publisher
}

// NewHandler creates a new appointment handler
func NewHandler(repo *Repository, evaluator *authz.Evaluator, bus events.Publisher) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{repo: repo, evaluator: evaluator, bus: bus}
}

// Routes registers the appointment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Book)
	r.Get("/", h.List)
	r.Get("/{appointmentID}", h.Get)
	r.Patch("/{appointmentID}/status", h.ChangeStatus)

	return r
}

// Book books an appointment for the calling patient
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if principal.Role != string(auth.RolePatient) {
		writeError(w, errors.Forbidden("only patients book appointments"))
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	conflict, err := h.repo.HasConflict(r.Context(), req.DoctorUserID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, err)
		return
	}
	if conflict {
		writeError(w, errors.Conflict("doctor is not available in the requested slot"))
		return
	}

	a := &Appointment{
		ID:            types.NewID(),
		PatientUserID: principal.ID,
		DoctorUserID:  req.DoctorUserID,
		Status:        StatusScheduled,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Reason:        req.Reason,
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAppointmentBooked()
	h.bus.Publish(r.Context(), events.NewEvent("appointment.booked", "appointment-service", map[string]any{
		"appointment_id": a.ID.String(),
		"doctor_user_id": a.DoctorUserID.String(),
		"date":           a.Date,
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusCreated, a)
}

// List lists the caller's own appointments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{}

	// Callers only ever see their own side of the schedule
	switch principal.Role {
	case string(auth.RoleDoctor):
		filter.DoctorUserID = &principal.ID
	default:
		filter.PatientUserID = &principal.ID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		s := Status(status)
		filter.Status = &s
	}
	if date := r.URL.Query().Get("date"); date != "" {
		filter.Date = date
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

	appointments, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  appointments,
		"total": total,
	})
}

// Get retrieves an appointment. Visible only to the linked patient and doctor.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.authorize(r, principal, a, authz.OpRead)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// ChangeStatus moves an appointment through its lifecycle. Only the linked
// patient and doctor may change it; the transition table enforces which
// moves are legal.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.authorize(r, principal, a, authz.OpWrite)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// Patients may only cancel; the doctor drives the visit lifecycle
	if principal.Role == string(auth.RolePatient) && req.Status != StatusCancelled {
		writeError(w, errors.Forbidden("patients may only cancel appointments"))
		return
	}

	from := a.Status
	if err := a.Transition(req.Status); err != nil {
		writeError(w, err)
		return
	}
	if req.Notes != "" {
		a.Notes = req.Notes
	}

	if err := h.repo.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAppointmentStatusChange(string(from), string(a.Status))
	h.bus.Publish(r.Context(), events.NewEvent("appointment.status_changed", "appointment-service", map[string]any{
		"appointment_id":  a.ID.String(),
		"patient_user_id": a.PatientUserID.String(),
		"doctor_user_id":  a.DoctorUserID.String(),
		"from":            string(from),
		"to":              string(a.Status),
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) authorize(r *http.Request, principal *sharedauth.Principal, a *Appointment, op authz.Operation) (authz.Decision, error) {
	return h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionAppointment,
		authz.Record{ID: a.ID, PatientID: a.PatientUserID, DoctorID: a.DoctorUserID},
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
