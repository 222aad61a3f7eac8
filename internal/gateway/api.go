package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/telehealth/internal/shared/errors"
)

// Handler exposes the gateway over HTTP. It backs the demo surface when the
// server runs in static mode, and doubles as a thin proxy in live mode.
type Handler struct {
	client *Client
}

// NewHandler creates a new gateway handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Routes registers the gateway routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/doctors", h.fetch(EndpointDoctors))
	r.Get("/hospitals", h.fetch(EndpointHospitals))
	r.Get("/appointments", h.fetch(EndpointAppts))
	r.Get("/emergency-transports", h.fetch(EndpointTransports))

	r.Post("/appointments", h.post(EndpointAppts))
	r.Post("/emergency-transports", h.post(EndpointTransports))

	return r
}

func (h *Handler) fetch(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		for k := range r.URL.Query() {
			params[k] = r.URL.Query().Get(k)
		}

		data, err := h.client.FetchData(r.Context(), endpoint, params)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	}
}

func (h *Handler) post(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, errors.BadRequest("invalid request body"))
			return
		}

		result, err := h.client.PostData(r.Context(), endpoint, payload)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, result)
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if reqErr, ok := err.(*RequestError); ok {
		status := reqErr.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": reqErr.Message})
		return
	}

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
