package oauth

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the strategies an installation has enabled, keyed by
// provider. Registration happens during startup; lookups are concurrent.
type Registry struct {
	mu         sync.RWMutex
	strategies map[Provider]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[Provider]Strategy),
	}
}

// Register adds a strategy. Registering the same provider twice is a
// configuration bug and fails with ErrDuplicateProvider.
func (r *Registry) Register(strategy Strategy) error {
	if strategy == nil {
		return fmt.Errorf("nil strategy")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := strategy.Provider()
	if _, exists := r.strategies[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, id)
	}
	r.strategies[id] = strategy
	return nil
}

// Get resolves a provider to its strategy.
func (r *Registry) Get(provider Provider) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, ok := r.strategies[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return strategy, nil
}

// Providers lists the registered providers in stable order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.strategies))
	for id := range r.strategies {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
