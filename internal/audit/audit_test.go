package audit

import (
	"context"
	"testing"
	"time"

	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// TestNewEntry tests creating a new audit entry
func TestNewEntry(t *testing.T) {
	actorID := types.NewID()
	resourceID := types.NewID()

	entry := NewEntry(
		"doctor",
		actorID,
		ActionRecordViewed,
		"record",
		&resourceID,
		map[string]any{"fields": []string{"allergies"}},
		"",
	)

	if entry.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}

	if entry.ActorRole != "doctor" {
		t.Errorf("Expected actor role doctor, got %s", entry.ActorRole)
	}

	if entry.ActorID != actorID {
		t.Errorf("Expected actorID %s, got %s", actorID, entry.ActorID)
	}

	if entry.Action != ActionRecordViewed {
		t.Errorf("Expected action %s, got %s", ActionRecordViewed, entry.Action)
	}

	if entry.Hash == "" {
		t.Error("Expected non-empty hash")
	}

	if entry.PrevHash != "" {
		t.Error("Expected empty prev_hash for first entry")
	}
}

// TestHashChainIntegrity tests that hash chain links are valid
func TestHashChainIntegrity(t *testing.T) {
	actorID := types.NewID()

	entries := make([]*Entry, 5)

	prevHash := ""
	for i := 0; i < 5; i++ {
		resourceID := types.NewID()
		entries[i] = NewEntry(
			"patient",
			actorID,
			ActionAppointmentBooked,
			"appointment",
			&resourceID,
			map[string]any{"index": i},
			prevHash,
		)
		prevHash = entries[i].Hash
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].Hash {
			t.Errorf("Chain broken at entry %d: expected prev_hash %s, got %s",
				i, entries[i-1].Hash, entries[i].PrevHash)
		}
	}

	for i, e := range entries {
		if !e.VerifyHash() {
			t.Errorf("Entry %d failed hash verification", i)
		}
	}
}

// TestHashIsDeterministic tests that the hash is stable across recalculation
func TestHashIsDeterministic(t *testing.T) {
	resourceID := types.NewID()
	entry := NewEntry(
		"doctor",
		types.NewID(),
		ActionDocumentUploaded,
		"document",
		&resourceID,
		map[string]any{"b": 2, "a": 1, "nested": map[string]any{"z": true, "y": false}},
		"",
	)

	first := entry.ComputeHash()
	for i := 0; i < 10; i++ {
		if got := entry.ComputeHash(); got != first {
			t.Fatalf("Hash not deterministic: %s vs %s", first, got)
		}
	}
}

// TestTamperDetection tests that modifying an entry invalidates its hash
func TestTamperDetection(t *testing.T) {
	resourceID := types.NewID()
	entry := NewEntry(
		"emergency_staff",
		types.NewID(),
		ActionTransportRequested,
		"transport",
		&resourceID,
		map[string]any{"urgency": "high"},
		"",
	)

	if !entry.VerifyHash() {
		t.Fatal("Expected fresh entry to verify")
	}

	entry.Action = ActionTransportUpdated

	if entry.VerifyHash() {
		t.Error("Expected tampered entry to fail verification")
	}
}

// TestVerifyEntriesDetectsViolations tests chain verification over a
// newest-first slice
func TestVerifyEntriesDetectsViolations(t *testing.T) {
	actorID := types.NewID()

	build := func() []Entry {
		var chain []Entry
		prevHash := ""
		for i := 0; i < 4; i++ {
			resourceID := types.NewID()
			e := NewEntry("patient", actorID, ActionConsentGranted, "consent", &resourceID, nil, prevHash)
			e.Sequence = int64(i + 1)
			prevHash = e.Hash
			chain = append(chain, *e)
		}
		// Newest first, as repositories return them
		reversed := make([]Entry, len(chain))
		for i := range chain {
			reversed[len(chain)-1-i] = chain[i]
		}
		return reversed
	}

	t.Run("Clean chain", func(t *testing.T) {
		result := verifyEntries(build(), false)
		if !result.Valid {
			t.Errorf("Expected valid chain, got violations: %v", result.Violations)
		}
		if result.Checked != 4 {
			t.Errorf("Expected 4 checked, got %d", result.Checked)
		}
	})

	t.Run("Content tampered", func(t *testing.T) {
		entries := build()
		entries[2].Action = ActionConsentRevoked

		result := verifyEntries(entries, true)
		if result.Valid {
			t.Error("Expected invalid chain after content tamper")
		}
		if result.ContentInvalid != 1 {
			t.Errorf("Expected 1 content violation, got %d", result.ContentInvalid)
		}
	})

	t.Run("Linkage broken", func(t *testing.T) {
		entries := build()
		// Replace an entry wholesale with a self-consistent one that does
		// not link to its neighbours
		resourceID := types.NewID()
		replacement := NewEntry("admin", actorID, ActionConsentRevoked, "consent", &resourceID, nil, "forged")
		replacement.Sequence = entries[1].Sequence
		entries[1] = *replacement

		result := verifyEntries(entries, false)
		if result.Valid {
			t.Error("Expected invalid chain after linkage break")
		}
		if result.LinkageInvalid == 0 {
			t.Error("Expected at least one linkage violation")
		}
	})
}

// fakeRepo collects appended entries for subscriber tests
type fakeRepo struct {
	entries []*Entry
}

func (f *fakeRepo) Initialize(ctx context.Context) error { return nil }
func (f *fakeRepo) Append(ctx context.Context, entry *Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeRepo) FindByID(ctx context.Context, id types.ID) (*Entry, error) { return nil, nil }
func (f *fakeRepo) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	return nil, 0, nil
}
func (f *fakeRepo) GetByResource(ctx context.Context, resourceType string, resourceID types.ID, limit int) ([]Entry, error) {
	return nil, nil
}
func (f *fakeRepo) VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error) {
	return nil, nil
}
func (f *fakeRepo) GetLastHash() string { return "" }

// TestSubscriberConvertsEvents tests domain event to audit entry conversion
func TestSubscriberConvertsEvents(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSubscriber(repo, nil)

	actorID := types.NewID()
	appointmentID := types.NewID()

	event := events.NewEvent("appointment.booked", "appointment-service", map[string]any{
		"appointment_id": appointmentID.String(),
		"status":         "scheduled",
	}).WithActor(actorID, "patient")

	if err := s.handleEvent(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("Expected 1 appended entry, got %d", len(repo.entries))
	}

	entry := repo.entries[0]
	if entry.Action != "appointment.booked" {
		t.Errorf("Expected action appointment.booked, got %s", entry.Action)
	}
	if entry.ResourceType != "appointment" {
		t.Errorf("Expected resource type appointment, got %s", entry.ResourceType)
	}
	if entry.ResourceID == nil || *entry.ResourceID != appointmentID {
		t.Error("Expected resource ID to be extracted from event data")
	}
	if entry.ActorRole != "patient" {
		t.Errorf("Expected actor role patient, got %s", entry.ActorRole)
	}
	if entry.Timestamp.Location() != time.UTC {
		t.Error("Expected UTC timestamp")
	}
}

// TestSubscriberSkipsUnstructuredEvents tests that events without a
// resource segment are ignored
func TestSubscriberSkipsUnstructuredEvents(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSubscriber(repo, nil)

	event := events.NewEvent("heartbeat", "system", nil)

	if err := s.handleEvent(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(repo.entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(repo.entries))
	}
}
