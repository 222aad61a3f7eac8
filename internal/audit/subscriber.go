package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/metrics"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// EventBus is the subset of the event bus the subscriber needs
type EventBus interface {
	Subscribe(ctx context.Context, pattern string, handler events.Handler) error
}

// Subscriber listens to domain events and creates audit entries
type Subscriber struct {
	repo Repository
	bus  EventBus
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(repo Repository, bus EventBus) *Subscriber {
	return &Subscriber{repo: repo, bus: bus}
}

// Start subscribes to all audited event streams
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []string{
		"auth.*",
		"record.*",
		"appointment.*",
		"consent.*",
		"transport.*",
		"document.*",
		"report.*",
	}

	for _, pattern := range patterns {
		if err := s.bus.Subscribe(ctx, pattern, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
		}
	}

	return nil
}

// handleEvent converts an incoming event into an audit entry and appends it
func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := s.eventToEntry(event)
	if entry == nil {
		return nil
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		metrics.RecordAuditAppendFailure()
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	metrics.RecordAuditEntry()
	return nil
}

// eventToEntry converts a domain event to an audit entry
func (s *Subscriber) eventToEntry(event events.Event) *Entry {
	parts := strings.SplitN(event.Type, ".", 2)
	if len(parts) < 2 {
		return nil
	}

	resourceType := parts[0]
	action := event.Type

	var resourceID *types.ID
	if data, ok := event.Data.(map[string]any); ok {
		for _, field := range []string{resourceType + "_id", "id"} {
			if idVal, ok := data[field]; ok {
				if idStr, ok := idVal.(string); ok {
					if id, err := types.ParseID(idStr); err == nil {
						resourceID = &id
						break
					}
				}
			}
		}
	}

	actorRole := event.ActorRole
	if actorRole == "" {
		actorRole = "system"
	}

	entry := &Entry{
		ID:           types.NewID(),
		Timestamp:    event.Timestamp.UTC().Truncate(time.Microsecond),
		ActorRole:    actorRole,
		ActorID:      event.ActorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}

	if data, ok := event.Data.(map[string]any); ok {
		entry.Changes = data
	}

	return entry
}
