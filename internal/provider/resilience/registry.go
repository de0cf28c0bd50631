package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Provider health states reported by the ops endpoints.
const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// ProviderHealth is a point-in-time health report for one provider.
type ProviderHealth struct {
	Name          string
	State         gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Status maps the breaker state to a health status.
func (h *ProviderHealth) Status() string {
	switch h.State {
	case gobreaker.StateOpen:
		return StatusUnavailable
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Available reports whether requests are currently let through.
func (h *ProviderHealth) Available() bool {
	return h.State != gobreaker.StateOpen
}

// breakerSource is the part of Client the registry reads.
type breakerSource interface {
	Name() string
	State() gobreaker.State
	Counts() gobreaker.Counts
}

type entry struct {
	source        breakerSource
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// Registry tracks provider clients and their recent outcomes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Register adds or replaces a provider.
func (r *Registry) Register(src breakerSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[src.Name()] = &entry{source: src}
}

// Unregister removes a provider.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// RecordSuccess notes a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		now := r.now()
		e.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed call and its error.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		now := r.now()
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns the health of one provider.
func (r *Registry) Health(name string) (*ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.health(name), true
}

// Snapshot returns the health of every provider, ordered by name.
func (r *Registry) Snapshot() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ready reports whether every registered provider is accepting requests.
// An empty registry is ready.
func (r *Registry) Ready() bool {
	for _, h := range r.Snapshot() {
		if !h.Available() {
			return false
		}
	}
	return true
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *entry) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		State:         e.source.State(),
		Counts:        e.source.Counts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
