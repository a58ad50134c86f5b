package resilience

import (
	"sync"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a snapshot of one outbound provider's state,
// surfaced by the ops status endpoint.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts
}

// Healthy reports whether the provider's breaker is closed.
func (h ProviderHealth) Healthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// Registry tracks the resilient clients created for external providers.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds a client under its configured name.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
}

// Health returns the health of a single provider, or false if unknown.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return ProviderHealth{
		Name:         name,
		CircuitState: c.BreakerState(),
		Counts:       c.BreakerCounts(),
	}, true
}

// AllHealth returns a health snapshot for every registered provider.
func (r *Registry) AllHealth() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]ProviderHealth, 0, len(r.clients))
	for name, c := range r.clients {
		health = append(health, ProviderHealth{
			Name:         name,
			CircuitState: c.BreakerState(),
			Counts:       c.BreakerCounts(),
		})
	}
	return health
}
