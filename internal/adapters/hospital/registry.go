package hospital

import (
	"context"
	"sync"
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
)

// Registry caches the hospital directory in memory. The HIS is slow and
// the directory changes rarely, so entries are refreshed at most once per
// TTL; a failed refresh falls back to the last good copy.
type Registry struct {
	source Source
	ttl    time.Duration

	mu        sync.RWMutex
	cached    []Hospital
	fetchedAt time.Time
}

// NewRegistry creates a registry over the given source
func NewRegistry(source Source, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{source: source, ttl: ttl}
}

// Hospitals returns the directory, refreshing it when stale
func (r *Registry) Hospitals(ctx context.Context) ([]Hospital, error) {
	r.mu.RLock()
	fresh := r.cached != nil && time.Since(r.fetchedAt) < r.ttl
	cached := r.cached
	r.mu.RUnlock()

	if fresh {
		return cached, nil
	}

	hospitals, err := r.source.FetchHospitals(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, errors.Wrap(err, "failed to load hospital directory")
	}

	r.mu.Lock()
	r.cached = hospitals
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	return hospitals, nil
}

// Find filters the directory by city and emergency capability. Empty
// city matches all; emergency nil matches all.
func (r *Registry) Find(ctx context.Context, city string, emergency *bool) ([]Hospital, error) {
	hospitals, err := r.Hospitals(ctx)
	if err != nil {
		return nil, err
	}

	var result []Hospital
	for _, h := range hospitals {
		if city != "" && h.City != city {
			continue
		}
		if emergency != nil && h.Emergency != *emergency {
			continue
		}
		result = append(result, h)
	}

	return result, nil
}

// Invalidate drops the cached copy so the next read hits the source
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
}
