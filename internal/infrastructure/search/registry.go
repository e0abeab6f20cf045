// Package search runs web searches through named provider strategies with
// a primary/fallback policy.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

// Provider names.
const (
	ProviderGoogle     = "google"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderBrave      = "brave"
)

var (
	// ErrRateLimited is returned by a provider that exhausted its 429 retries.
	ErrRateLimited = errors.New("search provider rate limited")
	// ErrNotConfigured is returned by a provider missing its credentials.
	ErrNotConfigured = errors.New("search provider not configured")
)

// Provider captures a single search strategy (Google CSE, DuckDuckGo, etc.).
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// Registry keeps a mapping from provider names to their implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds or replaces a provider implementation.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = map[string]Provider{}
	}
	r.providers[p.Name()] = p
}

// Resolve returns a provider by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("search provider %s is not registered", name)
}
