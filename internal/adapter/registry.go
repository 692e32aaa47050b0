package adapter

import (
	"fmt"
	"sync"

	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// Registry maps method families to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[payment.Kind]ProviderAdapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...ProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[payment.Kind]ProviderAdapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Kind().
func (r *Registry) Register(a ProviderAdapter) {
	if a == nil {
		panic("adapter cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

// For returns the adapter serving m.
func (r *Registry) For(m payment.Method) (ProviderAdapter, error) {
	if m == nil {
		return nil, fmt.Errorf("payment method cannot be nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[m.Kind()]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for %s methods", m.Kind())
	}
	return a, nil
}
