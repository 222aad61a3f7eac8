package patient

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/telehealth/internal/audit"
	"github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/authz"
	sharedauth "github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/metrics"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// mrnRegistryCode identifies records issued by this deployment
const mrnRegistryCode = "10"

// Handler provides HTTP handlers for patient records
type Handler struct {
	repo      *Repository
	evaluator *authz.Evaluator
	audit     audit.Repository
}

// NewHandler creates a new patient handler. The audit repository may be nil;
// record access is then not audited (static demo mode).
func NewHandler(repo *Repository, evaluator *authz.Evaluator, auditRepo audit.Repository) *Handler {
	return &Handler{repo: repo, evaluator: evaluator, audit: auditRepo}
}

// Routes registers the patient record routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/me", h.GetOwn)
	r.Get("/{patientID}", h.Get)
	r.Put("/{patientID}", h.Update)

	return r
}

// Create creates the caller's medical record. Only patients hold records.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if principal.Role != string(auth.RolePatient) {
		writeError(w, errors.Forbidden("only patients hold medical records"))
		return
	}

	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	seq, err := h.repo.NextSequence(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	mrn, err := types.NewMRN(mrnRegistryCode, seq)
	if err != nil {
		writeError(w, errors.Internal("failed to assign MRN"))
		return
	}

	rec := &Record{
		ID:             types.NewID(),
		UserID:         principal.ID,
		MRN:            mrn,
		FullName:       req.FullName,
		DateOfBirth:    req.DateOfBirth,
		Gender:         req.Gender,
		BloodType:      req.BloodType,
		Allergies:      req.Allergies,
		MedicalHistory: req.MedicalHistory,
		Contact:        req.Contact,
		Address:        req.Address,
	}

	if err := h.repo.Create(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// GetOwn returns the caller's own medical record
func (h *Handler) GetOwn(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	rec, err := h.repo.GetByUserID(r.Context(), principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Get returns a medical record. Access by anyone other than the owner is
// relation-gated: doctors need an active appointment plus an active consent,
// emergency staff need an active transport. Both allowed and denied reads
// are audited.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	rec, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionPatientRecord,
		authz.Record{ID: rec.ID, OwnerID: rec.UserID},
		authz.OpRead,
	)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}

	if !decision.Allowed {
		h.recordAccess(r, principal, rec, audit.ActionRecordDenied, map[string]any{
			"reason": decision.Reason,
		})
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	// Owners reading their own record are not audited; every other read is
	if principal.ID != rec.UserID {
		h.recordAccess(r, principal, rec, audit.ActionRecordViewed, map[string]any{
			"mrn": rec.MaskedMRN(),
		})
	}

	writeJSON(w, http.StatusOK, rec)
}

// Update updates a medical record. Records are writable only by their owner.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	rec, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionPatientRecord,
		authz.Record{ID: rec.ID, OwnerID: rec.UserID},
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

	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := req.Apply(rec); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Update(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}

	h.recordAccess(r, principal, rec, audit.ActionRecordUpdated, nil)

	writeJSON(w, http.StatusOK, rec)
}

// recordAccess appends an audit entry for a record access. Best effort: a
// failed append must not block the response, but it is logged and counted.
func (h *Handler) recordAccess(r *http.Request, principal *sharedauth.Principal, rec *Record, action string, changes map[string]any) {
	if h.audit == nil {
		return
	}

	entry := audit.NewEntry(
		principal.Role,
		principal.ID,
		action,
		"record",
		&rec.ID,
		changes,
		h.audit.GetLastHash(),
	)

	if err := h.audit.Append(r.Context(), entry); err != nil {
		metrics.RecordAuditAppendFailure()
		log.Printf("patient: failed to audit %s on record %s: %v", action, rec.ID, err)
		return
	}

	metrics.RecordAuditEntry()
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
