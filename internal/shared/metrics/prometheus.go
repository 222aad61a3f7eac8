package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	appointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total number of appointments booked",
		},
	)

	appointmentsStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_status_changed_total",
			Help: "Total number of appointment status changes",
		},
		[]string{"from_status", "to_status"},
	)

	transportsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_transports_requested_total",
			Help: "Total number of emergency transport requests",
		},
		[]string{"urgency"},
	)

	documentsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_uploaded_total",
			Help: "Total number of documents uploaded",
		},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries created",
		},
	)

	auditAppendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_append_failures_total",
			Help: "Total number of failed audit appends",
		},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"collection", "operation", "decision"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of data gateway requests",
		},
		[]string{"mode", "endpoint", "outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordAppointmentBooked records an appointment booking
func RecordAppointmentBooked() {
	appointmentsBooked.Inc()
}

// RecordAppointmentStatusChange records an appointment status change
func RecordAppointmentStatusChange(fromStatus, toStatus string) {
	appointmentsStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordTransportRequested records an emergency transport request
func RecordTransportRequested(urgency string) {
	transportsRequested.WithLabelValues(urgency).Inc()
}

// RecordDocumentUploaded records a document upload
func RecordDocumentUploaded() {
	documentsUploaded.Inc()
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}

// RecordAuditAppendFailure records a failed audit append
func RecordAuditAppendFailure() {
	auditAppendFailures.Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(collection, operation string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(collection, operation, decision).Inc()
}

// RecordGatewayRequest records a data gateway request
func RecordGatewayRequest(mode, endpoint, outcome string) {
	gatewayRequests.WithLabelValues(mode, endpoint, outcome).Inc()
}
