// Package wikipedia fetches page summaries from the Wikipedia REST API.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

const defaultEndpoint = "https://en.wikipedia.org/api/rest_v1/page/summary/"

// Client implements ports.Encyclopedia.
type Client struct {
	endpoint string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ ports.Encyclopedia = (*Client)(nil)

// New wires an HTTP client; limiter may be nil.
func New(endpoint string, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{endpoint: endpoint, client: client, limiter: limiter, logger: logger.With("component", "wikipedia")}
}

type summary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Lookup returns "Wikipedia: <title>\n\n<extract>", or "" when no page
// exists or the title is a disambiguation page.
func (c *Client) Lookup(ctx context.Context, subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", nil
	}
	if c.limiter != nil {
		if err := c.limiter.WaitIfNeeded(ctx, ratelimit.ServiceWikipedia); err != nil {
			return "", fmt.Errorf("wait for wikipedia slot: %w", err)
		}
	}
	c.logger.InfoContext(ctx, "Searching Wikipedia for: "+subject, "high_level", true)

	target := c.endpoint + url.PathEscape(strings.ReplaceAll(subject, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "OrcaStatLLM-Researcher/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request summary: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.DebugContext(ctx, "No Wikipedia results found", "subject", subject)
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("wikipedia returned %s", resp.Status)
	}

	var s summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	extract := strings.TrimSpace(s.Extract)
	if extract == "" || s.Type == "disambiguation" {
		return "", nil
	}
	title := s.Title
	if title == "" {
		title = subject
	}

	c.logger.DebugContext(ctx, fmt.Sprintf("Found Wikipedia content for '%s' (%d chars)", title, len(extract)))
	return fmt.Sprintf("Wikipedia: %s\n\n%s", title, extract), nil
}
