package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

// ClientDeps groups the registry and the provider order.
type ClientDeps struct {
	Registry        *Registry
	Primary         string
	Fallback        string
	Companions      []string
	BypassThreshold int
	Logger          *slog.Logger
}

// Client implements ports.Searcher on top of a primary provider with a
// fallback. The primary is bypassed for the process lifetime once it has
// failed BypassThreshold times. Companion providers run alongside the
// fallback and their results are merged and filtered.
type Client struct {
	registry   *Registry
	primary    string
	fallback   string
	companions []string
	threshold  int
	logger    *slog.Logger

	mu        sync.Mutex
	fallbacks int
}

var _ ports.Searcher = (*Client)(nil)

// NewClient validates that the fallback provider is registered.
func NewClient(deps ClientDeps) (*Client, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("search registry is not configured")
	}
	if _, err := deps.Registry.Resolve(deps.Fallback); err != nil {
		return nil, fmt.Errorf("resolve fallback: %w", err)
	}
	for _, name := range deps.Companions {
		if _, err := deps.Registry.Resolve(name); err != nil {
			return nil, fmt.Errorf("resolve companion: %w", err)
		}
	}
	if deps.BypassThreshold <= 0 {
		deps.BypassThreshold = 3
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		registry:   deps.Registry,
		primary:    deps.Primary,
		fallback:   deps.Fallback,
		companions: deps.Companions,
		threshold:  deps.BypassThreshold,
		logger:     logger.With("component", "search.client"),
	}, nil
}

// Search tries the primary provider before the fallback.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if c.primaryUsable() {
		results, err := c.run(ctx, c.primary, query)
		switch {
		case err == nil && len(results) > 0:
			c.resetFallbacks()
			return results, nil
		case err == nil:
			c.logger.DebugContext(ctx, "no primary results", "query", query)
		case errors.Is(err, ErrNotConfigured):
		default:
			n := c.countFallback()
			c.logger.InfoContext(ctx, "primary search failed, falling back", "error", err, "fallbacks", n, "high_level", true)
			metrics.RecordSearch(c.primary, "fallback")
		}
	} else if c.primary != "" {
		c.logger.DebugContext(ctx, "Using alternative search engines due to previous failures")
	}

	if len(c.companions) == 0 {
		return c.run(ctx, c.fallback, query)
	}
	return c.combined(ctx, query)
}

// combined queries the fallback and every companion concurrently. It fails
// only when every provider failed.
func (c *Client) combined(ctx context.Context, query string) ([]domain.SearchResult, error) {
	names := append([]string{c.fallback}, c.companions...)
	batches := make([][]domain.SearchResult, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Go(func() {
			batches[i], errs[i] = c.run(ctx, name, query)
		})
	}
	wg.Wait()

	var failed []error
	for i, err := range errs {
		if err != nil {
			c.logger.WarnContext(ctx, "combined search provider failed", "provider", names[i], "error", err)
			failed = append(failed, err)
		}
	}
	if len(failed) == len(names) {
		return nil, errors.Join(failed...)
	}

	merged := mergeResults(batches...)
	c.logger.InfoContext(ctx, fmt.Sprintf("Combined search found %d unique results", len(merged)), "high_level", true)
	return merged, nil
}

func (c *Client) run(ctx context.Context, name, query string) ([]domain.SearchResult, error) {
	provider, err := c.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	results, err := provider.Search(ctx, query)
	switch {
	case err != nil:
		metrics.RecordSearch(name, "error")
		return nil, fmt.Errorf("%s search: %w", name, err)
	case len(results) == 0:
		metrics.RecordSearch(name, "empty")
	default:
		metrics.RecordSearch(name, "ok")
	}
	return results, nil
}

func (c *Client) primaryUsable() bool {
	if c.primary == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallbacks < c.threshold
}

func (c *Client) countFallback() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacks++
	return c.fallbacks
}

func (c *Client) resetFallbacks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallbacks < c.threshold {
		c.fallbacks = 0
	}
}

// Fallbacks reports how many times the primary provider has failed.
func (c *Client) Fallbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallbacks
}
