package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/telehealth/internal/appointment"
	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/authz"
	"github.com/caremesh/telehealth/internal/doctor"
	"github.com/caremesh/telehealth/internal/document"
	"github.com/caremesh/telehealth/internal/patient"
	sharedauth "github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Handler generates visit-summary reports. A report is rendered from a
// completed appointment, stored like any other document, and owned by the
// appointment's patient.
type Handler struct {
	appointments *appointment.Repository
	patients     *patient.Repository
	doctors      *doctor.Repository
	documents    *document.Repository
	store        document.ObjectStore
	generator    *Generator
	evaluator    *authz.Evaluator
	bus          events.Publisher
}

// NewHandler creates a new report handler
func NewHandler(
	appointments *appointment.Repository,
	patients *patient.Repository,
	doctors *doctor.Repository,
	documents *document.Repository,
	store document.ObjectStore,
	evaluator *authz.Evaluator,
	bus events.Publisher,
) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		documents:    documents,
		store:        store,
		generator:    &Generator{},
		evaluator:    evaluator,
		bus:          bus,
	}
}

// Routes registers the report routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/appointments/{appointmentID}", h.GenerateVisitSummary)

	return r
}

// GenerateVisitSummary renders a PDF summary of a completed appointment
// and files it under the patient's documents
func (h *Handler) GenerateVisitSummary(w http.ResponseWriter, r *http.Request) {
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

	a, err := h.appointments.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionAppointment,
		authz.Record{ID: a.ID, PatientID: a.PatientUserID, DoctorID: a.DoctorUserID},
		authz.OpRead,
	)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	if a.Status != appointment.StatusCompleted {
		writeError(w, errors.Conflict("visit summaries are available only for completed appointments"))
		return
	}

	summary := VisitSummary{
		AppointmentID: a.ID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Reason:        a.Reason,
		Notes:         a.Notes,
		GeneratedAt:   time.Now().UTC(),
	}

	if rec, err := h.patients.GetByUserID(r.Context(), a.PatientUserID); err == nil {
		summary.PatientName = rec.FullName
		summary.PatientMRN = rec.MaskedMRN()
	}
	if profile, err := h.doctors.GetByUserID(r.Context(), a.DoctorUserID); err == nil {
		summary.DoctorName = profile.FullName
		summary.Specialty = profile.Specialty
	}

	data, err := h.generator.Generate(summary)
	if err != nil {
		writeError(w, err)
		return
	}

	_, hash, err := document.HashReader(bytes.NewReader(data))
	if err != nil {
		writeError(w, err)
		return
	}

	doc := &document.Document{
		ID:            types.NewID(),
		PatientUserID: a.PatientUserID,
		UploadedBy:    principal.ID,
		Title:         summary.Title(),
		FileName:      fmt.Sprintf("visit-summary-%s.pdf", a.Date),
		MimeType:      "application/pdf",
		FileSize:      int64(len(data)),
		FileHash:      hash,
	}
	doc.StorageKey = fmt.Sprintf("documents/%s/%s", a.PatientUserID, doc.ID)

	if err := h.store.Put(r.Context(), doc.StorageKey, data, doc.MimeType); err != nil {
		writeError(w, err)
		return
	}
	if err := h.documents.Create(r.Context(), doc); err != nil {
		_ = h.store.Delete(r.Context(), doc.StorageKey)
		writeError(w, err)
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("report.generated", "report-service", map[string]any{
		"report_id":       doc.ID.String(),
		"appointment_id":  a.ID.String(),
		"patient_user_id": a.PatientUserID.String(),
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusCreated, doc)
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
