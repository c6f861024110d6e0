package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// Calls and Failures count every reported call since registration.
	Calls    uint64
	Failures uint64

	// LastLatency is the duration of the most recent call, retries included.
	LastLatency time.Duration

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// lastCallFailed reports whether the most recent reported call was a failure.
func (h *ProviderHealth) lastCallFailed() bool {
	if h.LastFailureAt == nil {
		return false
	}
	return h.LastSuccessAt == nil || h.LastFailureAt.After(*h.LastSuccessAt)
}

// IsHealthy reports a closed breaker whose last call succeeded.
func (h *ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed && !h.lastCallFailed()
}

// IsDegraded reports a half-open breaker, or a closed one whose last call failed.
func (h *ProviderHealth) IsDegraded() bool {
	switch h.CircuitState {
	case gobreaker.StateHalfOpen:
		return true
	case gobreaker.StateClosed:
		return h.lastCallFailed()
	default:
		return false
	}
}

// IsUnhealthy reports an open breaker.
func (h *ProviderHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry collects the health of the planner and feed clients for the
// provider status endpoint. Clients created with ClientConfig.Registry report
// into it on every call.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerStats
}

type providerStats struct {
	client        *Client
	calls         uint64
	failures      uint64
	lastLatency   time.Duration
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*providerStats),
	}
}

// Register adds a client under name, replacing any earlier client and its stats.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerStats{client: client}
}

// Record reports one call. A nil err is a success. Unknown names are ignored.
func (r *Registry) Record(name string, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}
	now := time.Now()
	p.calls++
	p.lastLatency = latency
	if err != nil {
		p.failures++
		p.lastFailureAt = &now
		p.lastError = err.Error()
		return
	}
	p.lastSuccessAt = &now
}

// GetHealth returns the health of one provider, or nil when it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// GetAllHealth returns the health of every provider, sorted by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p *providerStats) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		Calls:         p.calls,
		Failures:      p.failures,
		LastLatency:   p.lastLatency,
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
