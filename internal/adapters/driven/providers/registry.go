package providers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry maps each provider type to its adapter and descriptor.
// Descriptors are fixed at registration; the registry is read-only afterwards.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[domain.ProviderType]driven.ProviderAdapter
	descriptors map[domain.ProviderType]*domain.ProviderDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:    make(map[domain.ProviderType]driven.ProviderAdapter),
		descriptors: make(map[domain.ProviderType]*domain.ProviderDescriptor),
	}
}

// Register registers an adapter with its descriptor.
func (r *Registry) Register(adapter driven.ProviderAdapter, desc *domain.ProviderDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Type()] = adapter
	r.descriptors[adapter.Type()] = desc
}

// Get returns the adapter and descriptor for a provider.
func (r *Registry) Get(providerType domain.ProviderType) (driven.ProviderAdapter, *domain.ProviderDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[providerType]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, providerType)
	}
	desc := r.descriptors[providerType]
	if !desc.IsConfigured() {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrProviderNotConfigured, providerType)
	}
	return adapter, desc, nil
}

// Descriptors returns registered descriptors in display order.
func (r *Registry) Descriptors() []*domain.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*domain.ProviderDescriptor, 0, len(r.descriptors))
	for _, pt := range domain.AllProviders() {
		if d, ok := r.descriptors[pt]; ok {
			descs = append(descs, d)
		}
	}
	return descs
}

// Credentials are the per-deployment settings of one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Scopes overrides the default scopes when non-empty.
	Scopes []string
}

// NewDefaultRegistry registers all four providers with their production
// endpoints. Providers missing from creds are registered unconfigured.
func NewDefaultRegistry(httpClient *http.Client, creds map[domain.ProviderType]Credentials, timeout time.Duration) *Registry {
	r := NewRegistry()
	adapters := []driven.ProviderAdapter{
		NewGoogleAdapter(httpClient),
		NewFacebookAdapter(httpClient),
		NewLinkedInAdapter(httpClient),
		NewTikTokAdapter(httpClient),
	}
	for _, a := range adapters {
		desc := DefaultDescriptor(a.Type())
		c := creds[a.Type()]
		desc.ClientID = c.ClientID
		desc.ClientSecret = c.ClientSecret
		desc.RedirectURI = c.RedirectURI
		if len(c.Scopes) > 0 {
			desc.Scopes = c.Scopes
		}
		desc.Timeout = timeout
		r.Register(a, desc)
	}
	return r
}
