package document

import (
	"encoding/json"
	"fmt"
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

// Handler provides HTTP handlers for medical documents. Document access
// follows the owning patient record's rules: whoever may read the record
// may read and attach its documents.
type Handler struct {
	repo      *Repository
	store     ObjectStore
	evaluator *authz.Evaluator
	bus       events.Publisher
}

// NewHandler creates a new document handler
func NewHandler(repo *Repository, store ObjectStore, evaluator *authz.Evaluator, bus events.Publisher) *Handler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Handler{repo: repo, store: store, evaluator: evaluator, bus: bus}
}

// Routes registers the document routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Upload)
	r.Get("/", h.List)
	r.Get("/{documentID}", h.Get)
	r.Get("/{documentID}/content", h.Download)
	r.Delete("/{documentID}", h.Delete)

	return r
}

// Upload accepts a multipart upload and attaches it to a patient record.
// Form fields: patient_user_id (optional for patients, defaults to self),
// title, and the file part "file".
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxFileSize); err != nil {
		writeError(w, errors.BadRequest("invalid multipart form"))
		return
	}

	patientUserID := principal.ID
	if raw := r.FormValue("patient_user_id"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient_user_id"))
			return
		}
		patientUserID = id
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.BadRequest("missing file part"))
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	mimeType := header.Header.Get("Content-Type")

	if err := ValidateUpload(title, header.Filename, mimeType, header.Size); err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.authorize(r, principal, patientUserID, authz.OpRead)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return
	}

	data, hash, err := HashReader(file)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := &Document{
		ID:            types.NewID(),
		PatientUserID: patientUserID,
		UploadedBy:    principal.ID,
		Title:         title,
		FileName:      header.Filename,
		MimeType:      mimeType,
		FileSize:      int64(len(data)),
		FileHash:      hash,
	}
	doc.StorageKey = fmt.Sprintf("documents/%s/%s", patientUserID, doc.ID)

	if err := h.store.Put(r.Context(), doc.StorageKey, data, mimeType); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Create(r.Context(), doc); err != nil {
		// Roll back the blob so storage does not accumulate orphans.
		_ = h.store.Delete(r.Context(), doc.StorageKey)
		writeError(w, err)
		return
	}

	metrics.RecordDocumentUploaded()
	h.bus.Publish(r.Context(), events.NewEvent("document.uploaded", "document-service", map[string]any{
		"document_id":     doc.ID.String(),
		"patient_user_id": patientUserID.String(),
		"mime_type":       mimeType,
		"file_size":       doc.FileSize,
	}).WithActor(principal.ID, principal.Role))

	writeJSON(w, http.StatusCreated, doc)
}

// List lists document metadata. Patients see their own documents; other
// callers must name a patient they are allowed to read.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	patientUserID := principal.ID
	if raw := r.URL.Query().Get("patient_user_id"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient_user_id"))
			return
		}
		patientUserID = id
	}

	if patientUserID != principal.ID {
		decision, err := h.authorize(r, principal, patientUserID, authz.OpRead)
		if err != nil {
			writeError(w, errors.Internal("authorization failed"))
			return
		}
		if !decision.Allowed {
			writeError(w, errors.Forbidden(decision.Reason))
			return
		}
	}

	filter := ListFilter{PatientUserID: &patientUserID}
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

	docs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  docs,
		"total": total,
	})
}

// Get retrieves document metadata
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_, doc, ok := h.load(w, r, authz.OpRead)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Download streams the document body
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	principal, doc, ok := h.load(w, r, authz.OpRead)
	if !ok {
		return
	}

	data, err := h.store.Get(r.Context(), doc.StorageKey)
	if err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("document.downloaded", "document-service", map[string]any{
		"document_id":     doc.ID.String(),
		"patient_user_id": doc.PatientUserID.String(),
	}).WithActor(principal.ID, principal.Role))

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Delete removes a document. Only the uploader or an admin may delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid document ID"))
		return
	}

	doc, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if principal.ID != doc.UploadedBy && principal.Role != string(auth.RoleAdmin) {
		writeError(w, errors.Forbidden("only the uploader or an admin may delete a document"))
		return
	}

	if err := h.repo.Delete(r.Context(), doc.ID); err != nil {
		writeError(w, err)
		return
	}
	_ = h.store.Delete(r.Context(), doc.StorageKey)

	w.WriteHeader(http.StatusNoContent)
}

// load fetches the document named in the URL and checks access against
// the owning patient record.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, op authz.Operation) (*sharedauth.Principal, *Document, bool) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, nil, false
	}

	id, err := types.ParseID(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid document ID"))
		return nil, nil, false
	}

	doc, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}

	decision, err := h.authorize(r, principal, doc.PatientUserID, op)
	if err != nil {
		writeError(w, errors.Internal("authorization failed"))
		return nil, nil, false
	}
	if !decision.Allowed {
		writeError(w, errors.Forbidden(decision.Reason))
		return nil, nil, false
	}

	return principal, doc, true
}

func (h *Handler) authorize(r *http.Request, principal *sharedauth.Principal, patientUserID types.ID, op authz.Operation) (authz.Decision, error) {
	return h.evaluator.Authorize(r.Context(),
		&authz.Principal{ID: principal.ID, Role: auth.Role(principal.Role)},
		authz.CollectionPatientRecord,
		authz.Record{ID: patientUserID, OwnerID: patientUserID},
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
