package hospital

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// countingSource wraps a fixed list and counts fetches
type countingSource struct {
	mu      sync.Mutex
	entries []Hospital
	fetches int
	fail    bool
}

func (s *countingSource) FetchHospitals(ctx context.Context) ([]Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.fail {
		return nil, fmt.Errorf("registry unreachable")
	}
	return s.entries, nil
}

func (s *countingSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func sampleHospitals() []Hospital {
	return []Hospital{
		{ID: "h1", Name: "Springfield General", City: "Springfield", Emergency: true},
		{ID: "h2", Name: "Springfield Clinic", City: "Springfield", Emergency: false},
		{ID: "h3", Name: "Shelbyville Medical Center", City: "Shelbyville", Emergency: true},
	}
}

// TestRegistryCachesWithinTTL tests that repeated reads hit the cache
func TestRegistryCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{entries: sampleHospitals()}
	registry := NewRegistry(source, time.Hour)

	for i := 0; i < 5; i++ {
		hospitals, err := registry.Hospitals(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(hospitals) != 3 {
			t.Fatalf("Expected 3 hospitals, got %d", len(hospitals))
		}
	}

	if got := source.fetchCount(); got != 1 {
		t.Errorf("Expected 1 source fetch, got %d", got)
	}
}

// TestRegistryErrorsWithoutCache tests that a failed load with no prior
// copy surfaces the error
func TestRegistryErrorsWithoutCache(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{entries: sampleHospitals()}
	registry := NewRegistry(source, time.Hour)

	if _, err := registry.Hospitals(ctx); err != nil {
		t.Fatalf("Expected initial load to succeed, got: %v", err)
	}

	source.fail = true
	registry.Invalidate()

	// Invalidate dropped the cache, so there is nothing to fall back to.
	if _, err := registry.Hospitals(ctx); err == nil {
		t.Error("Expected an error when the source is down and no cache exists")
	}
}

// TestRegistryServesStaleOnRefreshFailure tests fallback when the TTL
// expires but the source is down
func TestRegistryServesStaleOnRefreshFailure(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{entries: sampleHospitals()}
	registry := NewRegistry(source, time.Nanosecond)

	if _, err := registry.Hospitals(ctx); err != nil {
		t.Fatalf("Expected initial load to succeed, got: %v", err)
	}

	time.Sleep(time.Millisecond)
	source.fail = true

	hospitals, err := registry.Hospitals(ctx)
	if err != nil {
		t.Fatalf("Expected stale cache to be served, got: %v", err)
	}
	if len(hospitals) != 3 {
		t.Errorf("Expected 3 stale hospitals, got %d", len(hospitals))
	}
}

// TestRegistryFind tests city and emergency filtering
func TestRegistryFind(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(&StaticSource{Entries: sampleHospitals()}, time.Hour)

	springfield, err := registry.Find(ctx, "Springfield", nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(springfield) != 2 {
		t.Errorf("Expected 2 Springfield hospitals, got %d", len(springfield))
	}

	yes := true
	emergency, err := registry.Find(ctx, "", &yes)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(emergency) != 2 {
		t.Errorf("Expected 2 emergency hospitals, got %d", len(emergency))
	}

	both, err := registry.Find(ctx, "Shelbyville", &yes)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(both) != 1 || both[0].ID != "h3" {
		t.Errorf("Expected only Shelbyville Medical Center, got %v", both)
	}
}
