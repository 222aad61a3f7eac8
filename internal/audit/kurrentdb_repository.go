package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

const (
	// StreamName is the dedicated stream holding the audit chain
	StreamName = "care-audit"
	// EventType is the event type for audit entries
	EventType = "AuditEntry"
)

// KurrentRepository provides append-only audit log operations using
// KurrentDB. The store is inherently append-only, so the hash chain gains a
// second layer of tamper evidence from the storage itself. Reads are served
// from an in-memory mirror loaded at startup and extended on each append.
type KurrentRepository struct {
	client *esdb.Client

	mu       sync.Mutex
	entries  []Entry // oldest first
	lastHash string
	sequence int64
}

// NewKurrentRepository creates a new KurrentDB-based audit repository
func NewKurrentRepository(client *esdb.Client) *KurrentRepository {
	return &KurrentRepository{client: client}
}

// Initialize replays the audit stream to rebuild the in-memory mirror
func (r *KurrentRepository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.lastHash = ""
	r.sequence = 0

	stream, err := r.client.ReadStream(ctx, StreamName, esdb.ReadStreamOptions{
		Direction: esdb.Forwards,
		From:      esdb.Start{},
	}, ^uint64(0))
	if err != nil {
		// Stream doesn't exist yet
		if esdbErr, ok := esdb.FromError(err); ok && esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
			return nil
		}
		return errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event == nil || event.Event.EventType != EventType {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(event.Event.Data, &entry); err != nil {
			continue
		}

		r.entries = append(r.entries, entry)
		r.lastHash = entry.Hash
		r.sequence = entry.Sequence
	}

	return nil
}

// GetLastHash returns the last hash in the chain
func (r *KurrentRepository) GetLastHash() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHash
}

// Append appends a new audit entry (thread-safe)
func (r *KurrentRepository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sequence++
	entry.Sequence = r.sequence
	entry.PrevHash = r.lastHash
	entry.Hash = entry.calculateHash()

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}

	eventData := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   EventType,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
	}

	if _, err := r.client.AppendToStream(ctx, StreamName, esdb.AppendToStreamOptions{}, eventData); err != nil {
		r.sequence--
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.entries = append(r.entries, *entry)
	r.lastHash = entry.Hash

	return nil
}

// FindByID finds an audit entry by ID
func (r *KurrentRepository) FindByID(ctx context.Context, id types.ID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].ID == id {
			e := r.entries[i]
			return &e, nil
		}
	}

	return nil, errors.NotFound("audit entry", id.String())
}

// List lists audit entries with filters, newest first
func (r *KurrentRepository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if entryMatches(&r.entries[i], filter) {
			matched = append(matched, r.entries[i])
		}
	}

	total := len(matched)

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func entryMatches(e *Entry, filter ListFilter) bool {
	if filter.ActorID != nil && e.ActorID != *filter.ActorID {
		return false
	}
	if filter.ActorRole != "" && e.ActorRole != filter.ActorRole {
		return false
	}
	if filter.Action != "" && !hasPrefix(e.Action, filter.Action) {
		return false
	}
	if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
		return false
	}
	if filter.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *filter.ResourceID) {
		return false
	}
	if filter.StartTime != nil && e.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && e.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// GetByResource gets audit entries for a specific resource
func (r *KurrentRepository) GetByResource(ctx context.Context, resourceType string, resourceID types.ID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, _, err := r.List(ctx, ListFilter{
		ResourceType: resourceType,
		ResourceID:   &resourceID,
		Limit:        limit,
	})
	return entries, err
}

// VerifyChain verifies the integrity of the audit chain
func (r *KurrentRepository) VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	r.mu.Lock()
	// Newest first, matching the database repository's verification order
	n := len(r.entries)
	if limit > n {
		limit = n
	}
	newest := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		newest = append(newest, r.entries[i])
	}
	r.mu.Unlock()

	// Keep context plumbing consistent with the database repository even
	// though this path never blocks
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return verifyEntries(newest, includeDetails), nil
}

// WaitForStream blocks until the audit stream is reachable or the timeout
// elapses. Used at startup when KurrentDB comes up alongside the service.
func (r *KurrentRepository) WaitForStream(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := r.Initialize(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
