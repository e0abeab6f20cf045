package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

const googleResultCount = 10

// GoogleCSE queries the Custom Search JSON API.
type GoogleCSE struct {
	endpoint   string
	apiKey     string
	cseID      string
	maxRetries int
	client     *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

var _ Provider = (*GoogleCSE)(nil)

// GoogleConfig groups the CSE credentials and retry budget.
type GoogleConfig struct {
	Endpoint   string
	APIKey     string
	CSEID      string
	MaxRetries int
}

// NewGoogleCSE wires an HTTP client; limiter may be nil.
func NewGoogleCSE(cfg GoogleConfig, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *GoogleCSE {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	return &GoogleCSE{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		cseID:      cfg.CSEID,
		maxRetries: cfg.MaxRetries,
		client:     client,
		limiter:    limiter,
		logger:     logger.With("component", "search.google"),
	}
}

// Name identifies the strategy inside the registry.
func (g *GoogleCSE) Name() string {
	return ProviderGoogle
}

type cseResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search returns up to ten hits. A 429 is retried with backoff until the
// limiter gives up, then ErrRateLimited is returned.
func (g *GoogleCSE) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if g.apiKey == "" || g.cseID == "" || g.endpoint == "" {
		return nil, ErrNotConfigured
	}

	for retry := 0; ; retry++ {
		if g.limiter != nil {
			if err := g.limiter.WaitIfNeeded(ctx, ratelimit.ServiceGoogleCSE); err != nil {
				return nil, fmt.Errorf("wait for cse slot: %w", err)
			}
		}

		resp, err := g.get(ctx, query)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if g.limiter != nil && g.limiter.HandleRateLimit(ctx, ratelimit.ServiceGoogleCSE, retry+1, g.maxRetries) {
				continue
			}
			if g.limiter == nil && retry+1 < g.maxRetries {
				continue
			}
			return nil, ErrRateLimited
		}

		results, err := decodeCSE(resp)
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

func (g *GoogleCSE) get(ctx context.Context, query string) (*http.Response, error) {
	u, err := url.Parse(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid cse endpoint %s: %w", g.endpoint, err)
	}
	params := u.Query()
	params.Set("key", g.apiKey)
	params.Set("cx", g.cseID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(googleResultCount))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request cse: %w", err)
	}
	return resp, nil
}

func decodeCSE(resp *http.Response) ([]domain.SearchResult, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cse returned %s", resp.Status)
	}

	var payload cseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cse response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, domain.SearchResult{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}
