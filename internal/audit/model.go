package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// canonicalJSON produces deterministic JSON output with sorted map keys.
// Go maps have random iteration order and PostgreSQL JSONB may reorder
// keys, so hashing requires a canonical form.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}

// Entry represents an immutable audit log entry. Entries form a hash chain:
// each entry's hash covers its content plus the previous entry's hash.
type Entry struct {
	ID        types.ID  `json:"id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash,omitempty"`

	// Actor
	ActorRole string   `json:"actor_role"`
	ActorID   types.ID `json:"actor_id"`

	// Action
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   *types.ID `json:"resource_id,omitempty"`

	// Changes
	Changes map[string]any `json:"changes,omitempty"`

	// Context
	Justification string `json:"justification,omitempty"`
}

// NewEntry creates a new audit entry
func NewEntry(
	actorRole string,
	actorID types.ID,
	action, resourceType string,
	resourceID *types.ID,
	changes map[string]any,
	prevHash string,
) *Entry {
	entry := &Entry{
		ID: types.NewID(),
		// Truncate to microseconds for PostgreSQL round-trip stability
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		PrevHash:     prevHash,
		ActorRole:    actorRole,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changes,
	}

	entry.Hash = entry.calculateHash()

	return entry
}

// calculateHash calculates the SHA-256 hash of the entry using canonical JSON.
// Timestamps are always hashed in UTC so verification is timezone-independent.
func (e *Entry) calculateHash() string {
	data := map[string]any{
		"id":            e.ID,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"prev_hash":     e.PrevHash,
		"actor_role":    e.ActorRole,
		"actor_id":      e.ActorID,
		"action":        e.Action,
		"resource_type": e.ResourceType,
	}

	if e.ResourceID != nil {
		data["resource_id"] = e.ResourceID
	}
	if len(e.Changes) > 0 {
		data["changes"] = e.Changes
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// VerifyHash verifies the entry's stored hash against its content
func (e *Entry) VerifyHash() bool {
	return e.Hash == e.calculateHash()
}

// ComputeHash computes and returns the correct hash for this entry
func (e *Entry) ComputeHash() string {
	return e.calculateHash()
}

// WithJustification adds a free-text justification to the entry
func (e *Entry) WithJustification(justification string) *Entry {
	e.Justification = justification
	return e
}

// ListFilter defines filters for listing audit entries
type ListFilter struct {
	ActorID      *types.ID  `json:"actor_id,omitempty"`
	ActorRole    string     `json:"actor_role,omitempty"`
	Action       string     `json:"action,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   *types.ID  `json:"resource_id,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

// Common audit actions
const (
	// Authentication
	ActionLogin       = "auth.login"
	ActionLoginFailed = "auth.login_failed"
	ActionLogout      = "auth.logout"

	// Patient records
	ActionRecordViewed  = "record.viewed"
	ActionRecordUpdated = "record.updated"
	ActionRecordDenied  = "record.access_denied"

	// Appointments
	ActionAppointmentBooked    = "appointment.booked"
	ActionAppointmentUpdated   = "appointment.status_changed"
	ActionAppointmentCancelled = "appointment.cancelled"

	// Consents
	ActionConsentGranted = "consent.granted"
	ActionConsentRevoked = "consent.revoked"

	// Emergency transports
	ActionTransportRequested = "transport.requested"
	ActionTransportUpdated   = "transport.status_changed"

	// Documents
	ActionDocumentUploaded   = "document.uploaded"
	ActionDocumentDownloaded = "document.downloaded"

	// Reports
	ActionReportGenerated = "report.generated"
)
