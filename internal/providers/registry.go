package providers

import (
	"fmt"
	"log/slog"
	"sync"

	"freeway/config"
	"freeway/internal/core"
)

// Registry is the static set of adapters built at startup, in configuration order.
type Registry struct {
	mu        sync.RWMutex
	providers []core.Provider
	byName    map[string]core.Provider
}

// NewRegistry creates a registry holding the given providers.
func NewRegistry(list ...core.Provider) *Registry {
	r := &Registry{byName: make(map[string]core.Provider, len(list))}
	for _, p := range list {
		r.Register(p)
	}
	return r
}

// Register adds a provider. A provider with the same name replaces the previous one.
func (r *Registry) Register(p core.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		for i, existing := range r.providers {
			if existing.Name() == p.Name() {
				r.providers[i] = p
			}
		}
	} else {
		r.providers = append(r.providers, p)
	}
	r.byName[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (core.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// All returns every registered provider.
func (r *Registry) All() []core.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Enabled returns the providers with credentials configured.
func (r *Registry) Enabled() []core.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Provider
	for _, p := range r.providers {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// Fetchers returns the enabled providers that can list their models, keyed by name.
func (r *Registry) Fetchers() map[string]core.ModelFetcher {
	out := make(map[string]core.ModelFetcher)
	for _, p := range r.Enabled() {
		if f, ok := p.(core.ModelFetcher); ok {
			out[p.Name()] = f
		}
	}
	return out
}

// Build creates one adapter per known provider. Providers without an API key
// are still registered, disabled, so they show up in provider listings.
func Build(cfg *config.Config, opts Options) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range config.KnownProviders {
		pc := cfg.Providers[name]
		o := opts
		if pc.BaseURL != "" {
			o.BaseURL = pc.BaseURL
		}
		p, err := Create(name, pc.APIKey, o)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		reg.Register(p)
		slog.Info("provider registered", "provider", name, "enabled", p.IsEnabled(), "free", p.IsFreeProvider())
	}
	return reg, nil
}
